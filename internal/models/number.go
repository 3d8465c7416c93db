package models

import (
	"time"
)

type NumberStatus string

const (
	NumberStatusActive    NumberStatus = "ACTIVE"
	NumberStatusVerifying NumberStatus = "VERIFYING"
	NumberStatusBanned    NumberStatus = "BANNED"
)

type NumberSource string

const (
	NumberSourceGenerated NumberSource = "GENERATED"
	NumberSourceManual    NumberSource = "MANUAL"
	NumberSourceUpload    NumberSource = "UPLOAD"
)

// VirtualNumber is a disposable sender identity borrowed from the pool.
type VirtualNumber struct {
	ID          string       `json:"id" db:"id"`
	PhoneNumber string       `json:"phoneNumber" db:"phone_number"`
	CountryCode string       `json:"countryCode" db:"country_code"`
	Status      NumberStatus `json:"status" db:"status"`
	Source      NumberSource `json:"source" db:"source"`
	ExpiresAt   time.Time    `json:"expiresAt" db:"expires_at"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
}

// Expired reports whether the number is past its expiry at the given instant.
func (n *VirtualNumber) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// PoolStats is a point-in-time snapshot of the virtual number pool.
type PoolStats struct {
	Active    int `json:"active"`
	Allocated int `json:"allocated"`
	Banned    int `json:"banned"`
}
