// Package store persists licenses, rate-limit counters, and the append-only
// verification audit log in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a (key, product) pair has no license row.
var ErrNotFound = errors.New("license not found")

// RateLimitPolicy bounds request volume per (caller IP, license key) pair.
type RateLimitPolicy struct {
	Window      time.Duration // sliding window evaluated against last_request
	MaxRequests int           // requests allowed inside the window
	Retention   time.Duration // rows idle longer than this are purged lazily
}

// Store provides database access for the verification pipeline.
type Store struct {
	db *gorm.DB
}

// New creates a Store over an open GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AllowRequest applies the sliding-window rate limit for (ip, key). Stale
// rows beyond the retention threshold are purged first; cleanup is lazy and
// request-triggered, there is no background sweep. The read-then-write is
// not transactional: the limiter is advisory and brief over-counting under
// concurrent requests for the same pair is tolerated.
func (s *Store) AllowRequest(ctx context.Context, ip, licenseKey string, policy RateLimitPolicy) (bool, error) {
	now := time.Now()

	if err := s.db.WithContext(ctx).
		Where("last_request < ?", now.Add(-policy.Retention)).
		Delete(&RateLimitEntry{}).Error; err != nil {
		return false, fmt.Errorf("purge rate limits: %w", err)
	}

	var entry RateLimitEntry
	err := s.db.WithContext(ctx).
		Where("ip_address = ? AND license_key = ? AND last_request > ?",
			ip, licenseKey, now.Add(-policy.Window)).
		Limit(1).
		Take(&entry).Error
	switch {
	case err == nil:
		if entry.RequestCount >= policy.MaxRequests {
			return false, nil
		}
		if err := s.db.WithContext(ctx).Model(&RateLimitEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]interface{}{
				"request_count": gorm.Expr("request_count + 1"),
				"last_request":  now,
			}).Error; err != nil {
			return false, fmt.Errorf("increment rate limit: %w", err)
		}
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := RateLimitEntry{
			IPAddress:    ip,
			LicenseKey:   licenseKey,
			RequestCount: 1,
			LastRequest:  now,
		}
		if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
			return false, fmt.Errorf("create rate limit: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("query rate limit: %w", err)
	}
}

// LookupLicense finds a license by exact (key, product) match. Returns
// ErrNotFound when no row exists.
func (s *Store) LookupLicense(ctx context.Context, licenseKey, product string) (*License, error) {
	var license License
	err := s.db.WithContext(ctx).
		Where("license_key = ? AND product = ?", licenseKey, product).
		Limit(1).
		Take(&license).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup license: %w", err)
	}
	return &license, nil
}

// AppendVerificationLog writes one audit row. Write-once; nothing in this
// system updates or deletes verification_logs.
func (s *Store) AppendVerificationLog(ctx context.Context, entry *VerificationLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append verification log: %w", err)
	}
	return nil
}

// Ping reports connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("gorm sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
