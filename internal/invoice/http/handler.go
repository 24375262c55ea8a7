package invoicehttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/invox/invox/internal/export"
	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/persistence"
	"github.com/invox/invox/internal/platform/httpx"
	"github.com/invox/invox/internal/view"
	"github.com/invox/invox/jobs"
)

// Exporter produces downloadable and printable PDFs.
type Exporter interface {
	Export(ctx context.Context, doc invoice.Document, theme view.Theme) (export.Result, error)
	Print(ctx context.Context, doc invoice.Document, theme view.Theme) (export.Result, error)
}

// SavedStore lists and deletes named saves.
type SavedStore interface {
	GetNamed(ctx context.Context, name string) (invoice.Document, error)
	ListNamed(ctx context.Context) (persistence.Listing, error)
	DeleteNamed(ctx context.Context, name string) error
}

// JobQueue enqueues background exports.
type JobQueue interface {
	EnqueueExport(ctx context.Context, payload jobs.ExportPayload) (*asynq.TaskInfo, error)
}

// Handler wires the editor JSON API and the editor page.
type Handler struct {
	logger    *slog.Logger
	editor    *invoice.Editor
	saved     SavedStore
	exporter  Exporter
	templates *view.Engine
	jobs      JobQueue
	validator *validator.Validate
	exportRPM int
}

// NewHandler constructs handler. exportRPM caps export and print requests per
// client IP per minute; zero disables the limit.
func NewHandler(logger *slog.Logger, editor *invoice.Editor, saved SavedStore, exporter Exporter, templates *view.Engine, jobsClient JobQueue, exportRPM int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		editor:    editor,
		saved:     saved,
		exporter:  exporter,
		templates: templates,
		jobs:      jobsClient,
		validator: newValidator(),
		exportRPM: exportRPM,
	}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.editorPage)
	r.Route("/invoice", func(r chi.Router) {
		r.Get("/", h.show)
		r.Put("/business", h.setBusiness)
		r.Put("/client", h.setClient)
		r.Put("/meta", h.setMeta)
		r.Put("/pricing", h.setPricing)
		r.Post("/items", h.addItem)
		r.Put("/items", h.setItems)
		r.Patch("/items/{id}", h.updateItem)
		r.Delete("/items/{id}", h.removeItem)
		r.Post("/reset", h.reset)
		r.Post("/new", h.newInvoice)
		r.Get("/preview", h.preview)
		r.Group(func(r chi.Router) {
			if h.exportRPM > 0 {
				r.Use(httprate.LimitByIP(h.exportRPM, time.Minute))
			}
			r.Post("/export", h.exportPDF)
			r.Post("/print", h.printPDF)
		})
	})
	r.Route("/saved", func(r chi.Router) {
		r.Get("/", h.listSaved)
		r.Put("/{name}", h.saveAs)
		r.Delete("/{name}", h.deleteSaved)
		r.Post("/{name}/load", h.loadSaved)
		r.Post("/{name}/export", h.enqueueExport)
	})
}

func (h *Handler) editorPage(w http.ResponseWriter, r *http.Request) {
	theme, err := view.ParseTheme(r.URL.Query().Get("theme"))
	if err != nil {
		theme = view.ThemeMinimal
	}
	var names []string
	if listing, err := h.saved.ListNamed(r.Context()); err != nil {
		h.logger.Warn("list saved invoices", slog.Any("error", err))
	} else {
		names = listing.Names()
	}
	data := view.TemplateData{
		Title:       "Invox",
		CurrentPath: r.URL.Path,
		Data: view.EditorPage{
			Preview:  "/invoice/preview",
			Saved:    names,
			Theme:    theme,
			Messages: h.editor.Validate(),
		},
	}
	if err := h.templates.Render(w, "editor", data); err != nil {
		h.logger.Error("render editor page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, h.editor.Snapshot(), nil)
}

func (h *Handler) setBusiness(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.editor.SetBusiness(r.Context(), req.party())
	h.writeState(w, doc, err)
}

func (h *Handler) setClient(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.editor.SetClient(r.Context(), req.party())
	h.writeState(w, doc, err)
}

func (h *Handler) setMeta(w http.ResponseWriter, r *http.Request) {
	var req metaRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.editor.SetMeta(r.Context(), invoice.Meta{
		Number:  strings.TrimSpace(req.Number),
		Date:    req.Date,
		DueDate: req.DueDate,
	})
	h.writeState(w, doc, err)
}

func (h *Handler) setPricing(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.editor.SetPricing(r.Context(), req.patch())
	h.writeState(w, doc, err)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	req := itemRequest{}
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}
	item, err := h.editor.AddItem(r.Context(), req.item())
	if err != nil && !errors.Is(err, invoice.ErrPersist) {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Location", "/invoice/items/"+url.PathEscape(item.ID))
	h.writeStateStatus(w, http.StatusCreated, h.editor.Snapshot(), err)
}

func (h *Handler) setItems(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]invoice.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = it.item()
	}
	doc, err := h.editor.SetItems(r.Context(), items)
	h.writeState(w, doc, err)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req itemPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	_, err := h.editor.UpdateItem(r.Context(), chi.URLParam(r, "id"), invoice.ItemPatch{
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	})
	h.writeState(w, h.editor.Snapshot(), err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	_, err := h.editor.RemoveItem(r.Context(), chi.URLParam(r, "id"))
	h.writeState(w, h.editor.Snapshot(), err)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	doc, err := h.editor.Reset(r.Context())
	h.writeState(w, doc, err)
}

func (h *Handler) newInvoice(w http.ResponseWriter, r *http.Request) {
	doc, err := h.editor.New(r.Context())
	h.writeState(w, doc, err)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	theme, ok := h.theme(w, r)
	if !ok {
		return
	}
	doc := h.editor.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.RenderSurface(w, doc, h.editor.Calculator().Compute(doc), view.SurfaceOptions{Theme: theme}); err != nil {
		h.logger.Error("render invoice preview", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	h.renderPDF(w, r, "attachment", h.exporter.Export)
}

func (h *Handler) printPDF(w http.ResponseWriter, r *http.Request) {
	h.renderPDF(w, r, "inline", h.exporter.Print)
}

func (h *Handler) renderPDF(w http.ResponseWriter, r *http.Request, disposition string, render func(context.Context, invoice.Document, view.Theme) (export.Result, error)) {
	theme, ok := h.theme(w, r)
	if !ok {
		return
	}
	doc, err := h.editor.ExportSnapshot()
	if err != nil {
		h.respondError(w, err)
		return
	}
	res, err := render(r.Context(), doc, theme)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", disposition+`; filename="`+res.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	if res.Pages > 0 {
		w.Header().Set("X-Invoice-Pages", strconv.Itoa(res.Pages))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.PDF); err != nil {
		h.logger.Warn("write pdf response", slog.Any("error", err))
	}
}

func (h *Handler) listSaved(w http.ResponseWriter, r *http.Request) {
	listing, err := h.saved.ListNamed(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, savedListResponse{Names: listing.Names(), Corrupt: listing.Corrupt})
}

func (h *Handler) saveAs(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	if err := h.editor.SaveAs(r.Context(), name); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"name": name})
}

func (h *Handler) deleteSaved(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	if err := h.saved.DeleteNamed(r.Context(), name); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadSaved(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	doc, err := h.editor.LoadNamed(r.Context(), name)
	h.writeState(w, doc, err)
}

func (h *Handler) enqueueExport(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	if h.jobs == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Jobs Unavailable", "background exports are not configured")
		return
	}
	if _, err := h.saved.GetNamed(r.Context(), name); err != nil {
		h.respondError(w, err)
		return
	}
	info, err := h.jobs.EnqueueExport(r.Context(), jobs.ExportPayload{Name: name, Theme: r.URL.Query().Get("theme")})
	if err != nil {
		h.logger.Error("enqueue invoice export", slog.String("name", name), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Jobs Unavailable", "could not enqueue export")
		return
	}
	httpx.JSON(w, http.StatusAccepted, enqueuedResponse{TaskID: info.ID, Queue: info.Queue})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "request body is invalid", validationMessages(err)...)
		return false
	}
	return true
}

func (h *Handler) theme(w http.ResponseWriter, r *http.Request) (view.Theme, bool) {
	theme, err := view.ParseTheme(r.URL.Query().Get("theme"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return "", false
	}
	return theme, true
}

func nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "name")
	name, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(name) == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "a saved invoice name is required")
		return "", false
	}
	return strings.TrimSpace(name), true
}

func (h *Handler) writeState(w http.ResponseWriter, doc invoice.Document, err error) {
	h.writeStateStatus(w, http.StatusOK, doc, err)
}

// writeStateStatus renders the editor state. A write-through failure still
// returns the edited state, flagged with a warning.
func (h *Handler) writeStateStatus(w http.ResponseWriter, status int, doc invoice.Document, err error) {
	resp := stateResponse{
		Document: doc,
		Totals:   h.editor.Calculator().Compute(doc),
		Messages: invoice.Validate(doc),
	}
	if err != nil {
		if !errors.Is(err, invoice.ErrPersist) {
			h.respondError(w, err)
			return
		}
		resp.Warning = "changes were applied but could not be saved"
	}
	if resp.Messages == nil {
		resp.Messages = []string{}
	}
	httpx.JSON(w, status, resp)
}
