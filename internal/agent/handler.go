package agent

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/lennox-rose/blueprint-licensing/internal/errors"
)

// Handler exposes the agent service over HTTP for the panel UI.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new agent HTTP handler.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With(slog.String("handler", "agent")),
	}
}

// Routes returns a chi router for the agent API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/license/status", h.Status)
	r.Post("/license", h.Submit)
	r.Post("/settings", h.SaveSettings)

	return r
}

// submitRequest is the key submission payload.
type submitRequest struct {
	LicenseKey string `json:"license_key"`
}

// Status handles GET /api/license/status. The UI polls this on index load
// and on its heartbeat interval.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	valid := h.service.CheckStatus(r.Context())
	render.JSON(w, r, map[string]bool{"valid": valid})
}

// Submit handles POST /api/license.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}
	if req.LicenseKey == "" {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrValidation("license_key", "license_key is required")))
		return
	}

	result, err := h.service.SubmitLicenseKey(r.Context(), req.LicenseKey)
	if err != nil {
		switch {
		case errors.Is(err, ErrCooldown):
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrVerifyCooldown))
		default:
			h.logger.ErrorContext(r.Context(), "license submission failed",
				slog.String("error", err.Error()))
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrInternalServer))
		}
		return
	}

	render.JSON(w, r, result)
}

// SaveSettings handles POST /api/settings. Persisting is gated on a live
// license check.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var flags map[string]string
	if err := render.DecodeJSON(r.Body, &flags); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	if err := h.service.SaveDisplaySettings(r.Context(), flags); err != nil {
		switch {
		case errors.Is(err, ErrLicenseRequired):
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrLicenseRequired))
		default:
			h.logger.ErrorContext(r.Context(), "settings save failed",
				slog.String("error", err.Error()))
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrInternalServer))
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"message": "Safety Blur settings saved successfully!",
	})
}
