package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client. A zero timeout falls back to 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError is returned for non-2xx Gotenberg responses.
type StatusError struct {
	Route  string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gotenberg %s returned status %d: %s", e.Route, e.Status, e.Body)
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

// A4 paper in inches, as Gotenberg expects.
const (
	a4WidthIn  = "8.27"
	a4HeightIn = "11.69"
)

// RenderHTML converts raw HTML into an A4 PDF document.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	return c.post(ctx, "/forms/chromium/convert/html", html, map[string]string{
		"paperWidth":      a4WidthIn,
		"paperHeight":     a4HeightIn,
		"marginTop":       "0",
		"marginBottom":    "0",
		"marginLeft":      "0",
		"marginRight":     "0",
		"printBackground": "true",
	})
}

// ScreenshotOptions sizes the browser viewport for Screenshot.
type ScreenshotOptions struct {
	Width  int
	Height int
}

// Screenshot rasterizes raw HTML into a PNG of the full page.
func (c *Client) Screenshot(ctx context.Context, html string, opts ScreenshotOptions) ([]byte, error) {
	fields := map[string]string{
		"format":         "png",
		"omitBackground": "false",
		"clip":           "false",
	}
	if opts.Width > 0 {
		fields["width"] = strconv.Itoa(opts.Width)
	}
	if opts.Height > 0 {
		fields["height"] = strconv.Itoa(opts.Height)
	}
	return c.post(ctx, "/forms/chromium/screenshot/html", html, fields)
}

func (c *Client) post(ctx context.Context, route, html string, fields map[string]string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, bytes.NewBufferString(html)); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{Route: route, Status: resp.StatusCode, Body: string(data)}
	}
	return io.ReadAll(resp.Body)
}
