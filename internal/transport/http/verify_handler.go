package http

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lennox-rose/blueprint-licensing/internal/middleware"
	"github.com/lennox-rose/blueprint-licensing/internal/verify"
)

// VerifyHandler serves the license verification endpoint. Response bodies on
// this surface are pinned to the wire protocol: always
// {status, signature, timestamp}, whatever went wrong.
type VerifyHandler struct {
	service verify.Service
	logger  *slog.Logger
}

// NewVerifyHandler creates a new verification handler.
func NewVerifyHandler(service verify.Service, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "verify")),
	}
}

// Routes returns a chi router for the verification endpoint.
func (h *VerifyHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/{product}/verify", h.Verify)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

// Verify handles POST /v1/blueprint/{product}/verify.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("verify-handler")
	start := time.Now()

	ctx, span := tracer.Start(ctx, "verify_handler.verify",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/v1/blueprint/{product}/verify"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	var req verify.VerificationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		span.SetAttributes(attribute.String("error.type", "request_decode"))
		h.logger.InfoContext(ctx, "malformed verification request",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		h.writeVerdict(w, r, &verify.Outcome{
			Status:     verify.StatusInvalid,
			Timestamp:  time.Now().Unix(),
			HTTPStatus: http.StatusBadRequest,
		})
		return
	}

	// Shape check plus product/path binding: one endpoint serves one product.
	if err := verify.ValidateRequest(&req); err != nil || chi.URLParam(r, "product") != req.Product {
		span.SetAttributes(attribute.String("error.type", "request_shape"))
		h.writeVerdict(w, r, &verify.Outcome{
			Status:     verify.StatusInvalid,
			Timestamp:  time.Now().Unix(),
			HTTPStatus: http.StatusBadRequest,
		})
		return
	}

	outcome := h.service.Verify(ctx, &req, callerIP(r))

	span.SetAttributes(
		attribute.String("verify.status", outcome.Status),
		attribute.Int("http.status_code", outcome.HTTPStatus),
		attribute.Int64("request.latency_ms", time.Since(start).Milliseconds()),
	)

	h.writeVerdict(w, r, outcome)
}

// MethodNotAllowed rejects anything but POST with the protocol's invalid
// shape rather than chi's default empty 405.
func (h *VerifyHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeVerdict(w, r, &verify.Outcome{
		Status:     verify.StatusInvalid,
		Timestamp:  time.Now().Unix(),
		HTTPStatus: http.StatusMethodNotAllowed,
	})
}

func (h *VerifyHandler) writeVerdict(w http.ResponseWriter, r *http.Request, outcome *verify.Outcome) {
	render.Status(r, outcome.HTTPStatus)
	render.JSON(w, r, outcome.Response())
}

// callerIP extracts the caller address. RealIP middleware has already
// resolved forwarding headers into RemoteAddr.
func callerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
