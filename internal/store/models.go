package store

import "time"

// License statuses as stored in the licenses table. Any other value maps to
// an invalid verdict.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// License is an entitlement row. The verification API only ever reads this
// table; rows are managed by out-of-band administrative tooling.
type License struct {
	ID         uint   `gorm:"primaryKey"`
	LicenseKey string `gorm:"column:license_key;uniqueIndex:idx_licenses_key_product;size:128;not null"`
	Product    string `gorm:"uniqueIndex:idx_licenses_key_product;size:64;not null"`
	Status     string `gorm:"size:32;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName implements the gorm table naming override.
func (License) TableName() string { return "licenses" }

// RateLimitEntry tracks request volume per (caller IP, license key) pair.
// RequestCount is never decremented; stale rows are deleted by the lazy
// retention purge.
type RateLimitEntry struct {
	ID           uint      `gorm:"primaryKey"`
	IPAddress    string    `gorm:"column:ip_address;index:idx_rate_limits_ip_key;size:64;not null"`
	LicenseKey   string    `gorm:"column:license_key;index:idx_rate_limits_ip_key;size:128;not null"`
	RequestCount int       `gorm:"not null;default:1"`
	LastRequest  time.Time `gorm:"index;not null"`
}

// TableName implements the gorm table naming override.
func (RateLimitEntry) TableName() string { return "rate_limits" }

// VerificationLog is the append-only audit record of a verification attempt.
// Rows are never updated or deleted by this system.
type VerificationLog struct {
	ID             uint   `gorm:"primaryKey"`
	LicenseKey     string `gorm:"column:license_key;size:128;not null"`
	Product        string `gorm:"size:64;not null"`
	Domain         string `gorm:"size:255"`
	OwnerName      string `gorm:"size:255"`
	PanelVersion   string `gorm:"size:64"`
	ServerIP       string `gorm:"column:server_ip;size:64"`
	ControllerHash string `gorm:"column:controller_hash;size:128"`
	IPAddress      string `gorm:"column:ip_address;size:64"`
	RequestStatus  string `gorm:"size:16;not null"`
	CreatedAt      time.Time
}

// TableName implements the gorm table naming override.
func (VerificationLog) TableName() string { return "verification_logs" }
