// Package verify implements the server-side license verification pipeline:
// integrity attestation, per-(ip, key) rate limiting, license lookup, audit
// logging, and verdict signing.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lennox-rose/blueprint-licensing/internal/signing"
	"github.com/lennox-rose/blueprint-licensing/internal/store"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	AllowRequest(ctx context.Context, ip, licenseKey string, policy store.RateLimitPolicy) (bool, error)
	LookupLicense(ctx context.Context, licenseKey, product string) (*store.License, error)
	AppendVerificationLog(ctx context.Context, entry *store.VerificationLog) error
}

// Service verifies license requests and produces signed verdicts.
type Service interface {
	Verify(ctx context.Context, req *VerificationRequest, callerIP string) *Outcome
}

type service struct {
	store          Store
	secret         string
	expectedDigest string
	policy         store.RateLimitPolicy
	logger         *slog.Logger
	now            func() time.Time
}

// NewService creates the verification service. The secret signs verdicts;
// expectedDigest is the attestation token issued to trusted client builds.
func NewService(st Store, secret, expectedDigest string, policy store.RateLimitPolicy, logger *slog.Logger) Service {
	return &service{
		store:          st,
		secret:         secret,
		expectedDigest: expectedDigest,
		policy:         policy,
		logger:         logger.With(slog.String("component", "verify")),
		now:            time.Now,
	}
}

// Verify runs the pipeline. Every failure path degrades to an invalid-shaped
// verdict; internal error detail never reaches the caller.
func (s *service) Verify(ctx context.Context, req *VerificationRequest, callerIP string) *Outcome {
	// Client integrity attestation. Absence and mismatch are
	// indistinguishable to the caller; the detail goes to the security log.
	if req.Info.ControllerHash == "" ||
		!signing.ConstantTimeEqual(s.expectedDigest, req.Info.ControllerHash) {
		s.logger.WarnContext(ctx, "security violation: client integrity check failed",
			slog.String("action", "security_violation"),
			slog.String("license_key", req.Key),
			slog.String("product", req.Product),
			slog.String("domain", req.Info.Domain),
			slog.String("supplied_hash", req.Info.ControllerHash),
			slog.String("caller_ip", callerIP),
		)
		return s.invalid(http.StatusUnauthorized)
	}

	allowed, err := s.store.AllowRequest(ctx, callerIP, req.Key, s.policy)
	if err != nil {
		return s.internalError(ctx, "rate limit check failed", err)
	}
	if !allowed {
		return s.invalid(http.StatusTooManyRequests)
	}

	status := StatusInvalid
	license, err := s.store.LookupLicense(ctx, req.Key, req.Product)
	switch {
	case err == nil && license.Status == store.StatusActive:
		status = StatusGood
	case err == nil && license.Status == store.StatusInactive:
		status = StatusBad
	case err == nil || errors.Is(err, store.ErrNotFound):
		status = StatusInvalid
	default:
		return s.internalError(ctx, "license lookup failed", err)
	}

	// Every attempt that reaches the lookup is audited, whatever the verdict.
	logEntry := &store.VerificationLog{
		LicenseKey:     req.Key,
		Product:        req.Product,
		Domain:         req.Info.Domain,
		OwnerName:      req.Info.OwnerName,
		PanelVersion:   req.Info.PanelVersion,
		ServerIP:       req.Info.IPAddress,
		ControllerHash: req.Info.ControllerHash,
		IPAddress:      callerIP,
		RequestStatus:  status,
	}
	if err := s.store.AppendVerificationLog(ctx, logEntry); err != nil {
		return s.internalError(ctx, "audit log write failed", err)
	}

	timestamp := s.now().Unix()
	signature := ""
	if status == StatusGood {
		signature = signing.Sign(req.Key, timestamp, req.Info.Domain, s.secret)
	}

	s.logger.InfoContext(ctx, "verification completed",
		slog.String("product", req.Product),
		slog.String("status", status),
		slog.String("domain", req.Info.Domain),
		slog.String("caller_ip", callerIP),
	)

	return &Outcome{
		Status:     status,
		Signature:  signature,
		Timestamp:  timestamp,
		HTTPStatus: statusCodes[status],
	}
}

// invalid produces an unsigned invalid verdict with the given HTTP code.
func (s *service) invalid(httpStatus int) *Outcome {
	return &Outcome{
		Status:     StatusInvalid,
		Signature:  "",
		Timestamp:  s.now().Unix(),
		HTTPStatus: httpStatus,
	}
}

// internalError logs the failure server-side and degrades to a generic 500
// invalid verdict.
func (s *service) internalError(ctx context.Context, msg string, err error) *Outcome {
	s.logger.ErrorContext(ctx, msg, slog.String("error", err.Error()))
	return s.invalid(http.StatusInternalServerError)
}
