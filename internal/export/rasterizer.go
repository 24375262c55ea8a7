package export

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/invox/invox/report"
)

// Base viewport of the preview surface in CSS pixels (A4 at 96 dpi).
const (
	surfaceWidthPx  = 794
	surfaceHeightPx = 1123
)

// Screenshotter is the subset of report.Client used for rasterizing.
type Screenshotter interface {
	Screenshot(ctx context.Context, html string, opts report.ScreenshotOptions) ([]byte, error)
}

// GotenbergRasterizer screenshots the surface in headless Chromium. Scale is
// applied as CSS zoom together with a proportionally wider viewport.
type GotenbergRasterizer struct {
	Client Screenshotter
}

func (g GotenbergRasterizer) Rasterize(ctx context.Context, html string, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1
	}
	if scale != 1 {
		html = withZoom(html, scale)
	}
	return g.Client.Screenshot(ctx, html, report.ScreenshotOptions{
		Width:  int(math.Round(surfaceWidthPx * scale)),
		Height: int(math.Round(surfaceHeightPx * scale)),
	})
}

func withZoom(html string, scale float64) string {
	style := "<style>html{zoom:" + trimFloat(scale) + "}</style>"
	if i := strings.Index(strings.ToLower(html), "</head>"); i >= 0 {
		return html[:i] + style + html[i:]
	}
	return style + html
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
