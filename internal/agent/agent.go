// Package agent exposes the settings/heartbeat surface the panel UI
// consumes: a live license status, key submission with status-specific
// messaging, and display settings gated behind a live license check.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/lennox-rose/blueprint-licensing/internal/client"
	"github.com/lennox-rose/blueprint-licensing/internal/verify"
)

// ErrCooldown is returned when a manual verification fires inside the
// client-side cooldown window.
var ErrCooldown = errors.New("verification cooldown active")

// ErrLicenseRequired is returned when a gated operation runs without a
// passing live license check.
var ErrLicenseRequired = errors.New("license verification failed")

// User-facing messages per verdict, matching the panel's historical wording.
const (
	msgGood    = "License verified successfully!"
	msgBad     = "License is inactive. Please contact support."
	msgInvalid = "Invalid license key."
	msgUnknown = "Unknown response from license server."
)

// SubmitResult is the outcome of a license key submission.
type SubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Service implements the three operations of the settings surface.
type Service interface {
	CheckStatus(ctx context.Context) bool
	SubmitLicenseKey(ctx context.Context, key string) (*SubmitResult, error)
	SaveDisplaySettings(ctx context.Context, flags map[string]string) error
}

// Verifier is the slice of the license client the agent needs.
type Verifier interface {
	Check(ctx context.Context, licenseKey string) client.Result
	Heartbeat(ctx context.Context, licenseKey string) client.Result
}

type service struct {
	client   Verifier
	settings *client.SettingsStore
	cooldown *rate.Limiter
	logger   *slog.Logger
}

// NewService creates the agent service. The cooldown throttles manual
// verification only; it layers on top of, and never replaces, the server's
// own rate limiter.
func NewService(c Verifier, settings *client.SettingsStore, cooldown time.Duration, logger *slog.Logger) Service {
	return &service{
		client:   c,
		settings: settings,
		cooldown: rate.NewLimiter(rate.Every(cooldown), 1),
		logger:   logger.With(slog.String("component", "agent")),
	}
}

// CheckStatus runs a live verification of the stored key. A previously
// stored verdict is never trusted; only the key itself is cached.
func (s *service) CheckStatus(ctx context.Context) bool {
	key, err := s.settings.LicenseKey()
	if err != nil {
		s.logger.ErrorContext(ctx, "could not read stored license key",
			slog.String("error", err.Error()))
		return false
	}
	if key == "" {
		return false
	}

	return s.client.Heartbeat(ctx, key).Trusted
}

// SubmitLicenseKey verifies a key immediately and stores it. The key is
// stored on good, bad, and invalid verdicts alike so a later reactivation
// works without resubmission; only a good verdict reports success.
func (s *service) SubmitLicenseKey(ctx context.Context, key string) (*SubmitResult, error) {
	if !s.cooldown.Allow() {
		return nil, ErrCooldown
	}

	result := s.client.Check(ctx, key)

	s.logger.InfoContext(ctx, "license key submitted",
		slog.String("status", result.Status))

	switch result.Status {
	case verify.StatusGood:
		if err := s.settings.SetLicenseKey(key); err != nil {
			return nil, fmt.Errorf("store license key: %w", err)
		}
		return &SubmitResult{Success: true, Message: msgGood, Status: result.Status}, nil
	case verify.StatusBad:
		if err := s.settings.SetLicenseKey(key); err != nil {
			return nil, fmt.Errorf("store license key: %w", err)
		}
		return &SubmitResult{Success: false, Message: msgBad, Status: result.Status}, nil
	case verify.StatusInvalid:
		if err := s.settings.SetLicenseKey(key); err != nil {
			return nil, fmt.Errorf("store license key: %w", err)
		}
		return &SubmitResult{Success: false, Message: msgInvalid, Status: result.Status}, nil
	default:
		return &SubmitResult{Success: false, Message: msgUnknown, Status: result.Status}, nil
	}
}

// SaveDisplaySettings persists the blur flags, but only after a passing live
// license check; a cached verdict never gates writes.
func (s *service) SaveDisplaySettings(ctx context.Context, flags map[string]string) error {
	if !s.CheckStatus(ctx) {
		return ErrLicenseRequired
	}

	if err := s.settings.SetSettings(flags); err != nil {
		return fmt.Errorf("save display settings: %w", err)
	}
	return nil
}
