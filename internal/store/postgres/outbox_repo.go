package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/Rauan19/agendoai-sub000/internal/events"
)

type OutboxRepo struct {
	db *bun.DB
}

func NewOutboxRepo(db *bun.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

var _ events.Outbox = (*OutboxRepo)(nil)

// Drain locks up to limit unpublished rows with SKIP LOCKED, so several
// publishers can run side by side, and marks them published when fn succeeds.
func (r *OutboxRepo) Drain(ctx context.Context, limit int, fn func(ctx context.Context, batch []events.Event) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var batch []events.Event
		err := tx.NewSelect().
			Model(&batch).
			Where("published_at IS NULL").
			OrderExpr("occurred_at ASC, id ASC").
			Limit(limit).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(ctx, batch); err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(batch))
		for _, e := range batch {
			ids = append(ids, e.ID)
		}
		_, err = tx.NewUpdate().
			Model((*events.Event)(nil)).
			Set("published_at = ?", time.Now().UTC()).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
}
