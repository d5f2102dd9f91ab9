package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	ipLookupURL     = "https://api.ipify.org?format=json"
	ipLookupTimeout = 3 * time.Second
	ipCacheTTL      = 5 * time.Minute
)

// PublicIPResolver resolves the caller's public IP address through an
// external lookup service, memoized with an explicit TTL so repeated
// verification calls don't hammer the service. Concurrent cache misses are
// collapsed into a single upstream request.
type PublicIPResolver struct {
	httpClient *http.Client
	logger     *slog.Logger
	lookupURL  string
	ttl        time.Duration

	mu        sync.RWMutex
	cached    string
	fetchedAt time.Time

	group singleflight.Group
}

// NewPublicIPResolver creates a resolver with the default TTL.
func NewPublicIPResolver(logger *slog.Logger) *PublicIPResolver {
	return &PublicIPResolver{
		httpClient: &http.Client{Timeout: ipLookupTimeout},
		logger:     logger.With(slog.String("component", "public_ip")),
		lookupURL:  ipLookupURL,
		ttl:        ipCacheTTL,
	}
}

// Resolve returns the cached public IP, refreshing it when the TTL has
// lapsed. Lookup failures fall back to resolving the local hostname; the
// result is best effort either way.
func (p *PublicIPResolver) Resolve(ctx context.Context) string {
	p.mu.RLock()
	if p.cached != "" && time.Since(p.fetchedAt) < p.ttl {
		ip := p.cached
		p.mu.RUnlock()
		return ip
	}
	p.mu.RUnlock()

	ip, _, _ := p.group.Do("public-ip", func() (interface{}, error) {
		ip := p.lookup(ctx)
		if ip == "" {
			ip = fallbackIP()
		}

		p.mu.Lock()
		p.cached = ip
		p.fetchedAt = time.Now()
		p.mu.Unlock()

		return ip, nil
	})

	return ip.(string)
}

// Invalidate drops the cached address so the next Resolve refreshes it.
func (p *PublicIPResolver) Invalidate() {
	p.mu.Lock()
	p.cached = ""
	p.fetchedAt = time.Time{}
	p.mu.Unlock()
}

func (p *PublicIPResolver) lookup(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.lookupURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.DebugContext(ctx, "public ip lookup failed",
			slog.String("error", err.Error()))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}
	return payload.IP
}

// fallbackIP resolves the local hostname when the external lookup is
// unavailable.
func fallbackIP() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}
