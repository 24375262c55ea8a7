package invoicehttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/invox/invox/internal/export"
	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/persistence"
	"github.com/invox/invox/internal/platform/httpx"
)

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var verr *invoice.ValidationError
	var corrupt *persistence.CorruptError
	var rerr *export.RasterizeError
	switch {
	case errors.As(err, &verr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invoice is not ready to "+verr.Op, verr.Messages...)
	case errors.As(err, &corrupt):
		h.logger.Warn("corrupt invoice payload", slog.String("key", corrupt.Key), slog.String("quarantine", corrupt.QuarantineKey))
		httpx.Problem(w, http.StatusConflict, "Stored Data Unreadable",
			"the stored payload could not be read and was copied to "+corrupt.QuarantineKey)
	case errors.Is(err, invoice.ErrItemNotFound), errors.Is(err, persistence.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, persistence.ErrEmptyName):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.As(err, &rerr):
		h.logger.Error("rasterize invoice", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Export Failed", "the rendering service could not rasterize the invoice")
	case errors.Is(err, export.ErrSurfaceUnavailable):
		h.logger.Error("render invoice surface", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Export Failed", "the invoice preview is not available")
	default:
		h.logger.Error("invoice request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
