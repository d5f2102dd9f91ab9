package client

import (
	"context"
	"log/slog"
	"time"
)

// Heartbeat re-verifies the stored license key on a fixed interval,
// independent of user interaction. Results are logged only; every trust
// decision in the agent runs its own live check, so the loop never caches a
// verdict for anything to reuse.
type Heartbeat struct {
	client   *Client
	settings *SettingsStore
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewHeartbeat creates the heartbeat runner.
func NewHeartbeat(client *Client, settings *SettingsStore, interval time.Duration, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{
		client:   client,
		settings: settings,
		interval: interval,
		logger:   logger.With(slog.String("component", "heartbeat")),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. The first beat fires immediately.
func (h *Heartbeat) Start(ctx context.Context) {
	go h.run(ctx)
}

// Stop terminates the loop and waits for it to exit.
func (h *Heartbeat) Stop() {
	close(h.stop)
	<-h.done
}

func (h *Heartbeat) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.beat(ctx)
	for {
		select {
		case <-ticker.C:
			h.beat(ctx)
		case <-h.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	key, err := h.settings.LicenseKey()
	if err != nil {
		h.logger.ErrorContext(ctx, "heartbeat could not read stored license key",
			slog.String("error", err.Error()))
		return
	}
	if key == "" {
		h.logger.DebugContext(ctx, "heartbeat skipped, no license key stored")
		return
	}

	result := h.client.Heartbeat(ctx, key)
	h.logger.InfoContext(ctx, "heartbeat completed",
		slog.String("license_key_prefix", keyPrefix(key)),
		slog.String("status", result.Status),
		slog.Bool("valid", result.Trusted),
	)
}
