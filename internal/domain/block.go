package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BlockedInterval removes [StartMinute, EndMinute) from a provider's
// availability on Date regardless of rules. Blocks may overlap each other.
type BlockedInterval struct {
	bun.BaseModel `bun:"table:blocked_intervals"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID  string    `bun:"provider_id,notnull"`
	Date        time.Time `bun:"date,type:date,notnull"`
	StartMinute Minute    `bun:"start_minute,notnull"`
	EndMinute   Minute    `bun:"end_minute,notnull"`
	Reason      string    `bun:"reason"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (b *BlockedInterval) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (b BlockedInterval) Interval() Interval {
	return Interval{Start: b.StartMinute, End: b.EndMinute}
}
