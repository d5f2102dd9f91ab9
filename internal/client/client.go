// Package client implements the verifying side of the license protocol: it
// builds verification requests, authenticates the server's signed verdict,
// and exposes a fail-closed trust decision to the rest of the panel agent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lennox-rose/blueprint-licensing/internal/config"
	"github.com/lennox-rose/blueprint-licensing/internal/signing"
	"github.com/lennox-rose/blueprint-licensing/internal/verify"
)

// Statuses the client reports beyond the server's own verdicts.
const (
	StatusUnknown     = "unknown"
	StatusUnreachable = "unreachable"
)

const (
	userAgent        = "SafetyBlur-Extension/1.0"
	maxTimestampSkew = 60 * time.Second
	heartbeatTimeout = 5 * time.Second
	submitTimeout    = 10 * time.Second
)

// Result is the outcome of one verification call. Trusted is true only when
// the verdict passed the freshness and signature checks and the status is
// "good"; every ambiguity collapses to false.
type Result struct {
	Status  string
	Trusted bool
}

// Client calls the verification server and authenticates its verdicts.
type Client struct {
	cfg        *config.AgentConfig
	httpClient *http.Client
	ip         *PublicIPResolver
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a verifying client.
func New(cfg *config.AgentConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: submitTimeout},
		ip:         NewPublicIPResolver(logger),
		logger:     logger.With(slog.String("component", "license_client")),
		now:        time.Now,
	}
}

// Heartbeat performs the periodic live check with the shorter heartbeat
// timeout.
func (c *Client) Heartbeat(ctx context.Context, licenseKey string) Result {
	ctx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
	defer cancel()
	return c.Check(ctx, licenseKey)
}

// Check sends one verification request and returns the authenticated result.
// It never returns an error: transport failures, missing fields, stale
// timestamps, and bad signatures all fail closed.
func (c *Client) Check(ctx context.Context, licenseKey string) Result {
	req := verify.VerificationRequest{
		Key:     licenseKey,
		Product: c.cfg.Product,
		Info: &verify.RequestInfo{
			Domain:         c.cfg.Domain,
			OwnerName:      c.cfg.OwnerName,
			PanelVersion:   c.cfg.PanelVersion,
			IPAddress:      c.ip.Resolve(ctx),
			ControllerHash: AttestationToken(),
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to encode verification request",
			slog.String("error", err.Error()))
		return Result{Status: StatusUnknown}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(), bytes.NewReader(body))
	if err != nil {
		return Result{Status: StatusUnknown}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.WarnContext(ctx, "license server unreachable",
			slog.String("error", err.Error()))
		return Result{Status: StatusUnreachable}
	}
	defer resp.Body.Close()

	var verdict verify.VerificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		c.logger.WarnContext(ctx, "malformed verification response",
			slog.String("error", err.Error()))
		return Result{Status: StatusUnknown}
	}

	if verdict.Status == "" || verdict.Timestamp == 0 {
		c.logger.WarnContext(ctx, "verification response missing required fields")
		return Result{Status: StatusUnknown}
	}

	status := verdict.Status
	switch status {
	case verify.StatusGood, verify.StatusBad, verify.StatusInvalid:
	default:
		status = StatusUnknown
	}

	// A non-good verdict carries no signature and nothing to authenticate.
	if status != verify.StatusGood || resp.StatusCode != http.StatusOK {
		return Result{Status: status}
	}

	// Freshness: reject replayed or stale verdicts.
	skew := c.now().Unix() - verdict.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > maxTimestampSkew {
		c.logger.WarnContext(ctx, "verification response timestamp too old",
			slog.Int64("skew_seconds", skew))
		return Result{Status: StatusUnknown}
	}

	if !signing.Verify(licenseKey, verdict.Timestamp, c.cfg.Domain, c.cfg.VerificationSecret, verdict.Signature) {
		c.logger.WarnContext(ctx, "verification response signature mismatch",
			slog.String("action", "security_violation"),
			slog.String("license_key_prefix", keyPrefix(licenseKey)),
		)
		return Result{Status: StatusUnknown}
	}

	return Result{Status: verify.StatusGood, Trusted: true}
}

// apiURL re-reads the optional local override file on every call so a
// redeployed override takes effect without a restart.
func (c *Client) apiURL() string {
	data, err := os.ReadFile(c.cfg.OverridePath)
	if err != nil {
		return c.cfg.APIURL
	}

	var override struct {
		APIURL string `json:"api_url"`
	}
	if err := json.Unmarshal(data, &override); err != nil || override.APIURL == "" {
		return c.cfg.APIURL
	}
	return override.APIURL
}

func keyPrefix(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
