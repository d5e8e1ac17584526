package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

var _ store.ScheduleStore = (*ScheduleRepo)(nil)

func (r *ScheduleRepo) GetEffectiveDayWindow(ctx context.Context, providerID string, date time.Time) (domain.Window, bool, error) {
	var override domain.DateOverride
	err := r.db.NewSelect().
		Model(&override).
		Where("provider_id = ?", providerID).
		Where("date = ?", domain.FormatDate(date)).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		w, ok := domain.ResolveWindow(&override, nil)
		return w, ok, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Window{}, false, fmt.Errorf("get override: %w", err)
	}

	var rule domain.WeeklyRule
	err = r.db.NewSelect().
		Model(&rule).
		Where("provider_id = ?", providerID).
		Where("day_of_week = ?", domain.DayOfWeek(date)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Window{}, false, nil
	}
	if err != nil {
		return domain.Window{}, false, fmt.Errorf("get weekly rule: %w", err)
	}
	w, ok := domain.ResolveWindow(nil, &rule)
	return w, ok, nil
}

func (r *ScheduleRepo) ListWeeklyRules(ctx context.Context, providerID string) ([]domain.WeeklyRule, error) {
	return listWeeklyRules(ctx, r.db, providerID)
}

func (r *ScheduleRepo) ReplaceWeeklyRules(ctx context.Context, providerID string, rules []domain.WeeklyRule) ([]domain.WeeklyRule, error) {
	var out []domain.WeeklyRule
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		days := make([]int16, 0, len(rules))
		for _, rule := range rules {
			days = append(days, rule.DayOfWeek)
		}

		del := tx.NewDelete().
			Model((*domain.WeeklyRule)(nil)).
			Where("provider_id = ?", providerID)
		if len(days) > 0 {
			del = del.Where("day_of_week NOT IN (?)", bun.In(days))
		}
		if _, err := del.Exec(ctx); err != nil {
			return err
		}

		if len(rules) > 0 {
			rows := make([]domain.WeeklyRule, len(rules))
			for i, rule := range rules {
				rule.ProviderID = providerID
				rows[i] = rule
			}
			_, err := tx.NewInsert().
				Model(&rows).
				On("CONFLICT (provider_id, day_of_week) DO UPDATE").
				Set("start_minute = EXCLUDED.start_minute").
				Set("end_minute = EXCLUDED.end_minute").
				Set("granularity_minutes = EXCLUDED.granularity_minutes").
				Set("is_available = EXCLUDED.is_available").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return err
			}
		}

		rows, err := listWeeklyRules(ctx, tx, providerID)
		if err != nil {
			return err
		}
		out = rows
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replace weekly rules: %w", err)
	}
	return out, nil
}

func (r *ScheduleRepo) UpsertOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	m := o
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (provider_id, date) DO UPDATE").
		Set("start_minute = EXCLUDED.start_minute").
		Set("end_minute = EXCLUDED.end_minute").
		Set("granularity_minutes = EXCLUDED.granularity_minutes").
		Set("is_available = EXCLUDED.is_available").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.DateOverride{}, fmt.Errorf("upsert override: %w", err)
	}
	return m, nil
}

func (r *ScheduleRepo) DeleteOverride(ctx context.Context, providerID string, date time.Time) error {
	res, err := r.db.NewDelete().
		Model((*domain.DateOverride)(nil)).
		Where("provider_id = ?", providerID).
		Where("date = ?", domain.FormatDate(date)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
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

func listWeeklyRules(ctx context.Context, db bun.IDB, providerID string) ([]domain.WeeklyRule, error) {
	rows := []domain.WeeklyRule{}
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("day_of_week ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
