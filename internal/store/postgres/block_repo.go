package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

type BlockRepo struct {
	ledger *LedgerRepo
	db     *bun.DB
}

func NewBlockRepo(db *bun.DB) *BlockRepo {
	return &BlockRepo{db: db, ledger: NewLedgerRepo(db)}
}

var _ store.BlockStore = (*BlockRepo)(nil)

func (r *BlockRepo) GetBlocks(ctx context.Context, providerID string, date time.Time) ([]domain.BlockedInterval, error) {
	rows, err := selectBlocks(ctx, r.db, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return rows, nil
}

// CreateBlock takes the provider-day lock so a block and a booking for the
// same day are ordered.
func (r *BlockRepo) CreateBlock(ctx context.Context, b domain.BlockedInterval) (domain.BlockedInterval, error) {
	var out domain.BlockedInterval
	err := r.ledger.InProviderDay(ctx, b.ProviderID, b.Date, func(ctx context.Context, tx store.LedgerTx) error {
		created, err := tx.InsertBlock(ctx, b)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.BlockedInterval{}, fmt.Errorf("create block: %w", err)
	}
	return out, nil
}

func (r *BlockRepo) DeleteBlock(ctx context.Context, providerID string, blockID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.BlockedInterval)(nil)).
		Where("provider_id = ?", providerID).
		Where("id = ?", blockID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func selectBlocks(ctx context.Context, db bun.IDB, providerID string, date time.Time) ([]domain.BlockedInterval, error) {
	var rows []domain.BlockedInterval
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("date = ?", domain.FormatDate(date)).
		OrderExpr("start_minute ASC, end_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
