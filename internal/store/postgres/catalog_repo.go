package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

type CatalogRepo struct {
	db *bun.DB
}

func NewCatalogRepo(db *bun.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

var _ store.Catalog = (*CatalogRepo)(nil)

func (r *CatalogRepo) GetProvider(ctx context.Context, id string) (domain.Provider, error) {
	var p domain.Provider
	err := r.db.NewSelect().Model(&p).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Provider{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Provider{}, fmt.Errorf("get provider: %w", err)
	}
	return p, nil
}

func (r *CatalogRepo) GetService(ctx context.Context, id string) (domain.Service, error) {
	var s domain.Service
	err := r.db.NewSelect().Model(&s).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Service{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Service{}, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}
