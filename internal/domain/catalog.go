package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// Provider is the slice of the provider directory this service reads.
type Provider struct {
	bun.BaseModel `bun:"table:providers"`

	ID          string    `bun:"id,pk" json:"id"`
	DisplayName string    `bun:"display_name" json:"display_name"`
	Active      bool      `bun:"active,notnull" json:"active"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Service is the slice of the service catalog this service reads. An empty
// ProviderID means any provider may offer it.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              string    `bun:"id,pk" json:"id"`
	ProviderID      string    `bun:"provider_id,nullzero" json:"provider_id,omitempty"`
	Name            string    `bun:"name" json:"name"`
	DurationMinutes int       `bun:"duration_minutes,notnull" json:"duration_minutes"`
	Active          bool      `bun:"active,notnull" json:"active"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}

func (s Service) OfferedBy(providerID string) bool {
	return s.ProviderID == "" || s.ProviderID == providerID
}
