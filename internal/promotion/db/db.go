package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Promotion, error) {
	var promo models.Promotion
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("promo_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeVoucherNotFound, "promotion %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (d *DB) GetByCode(ctx context.Context, code string) (*models.Promotion, error) {
	var promo models.Promotion
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeVoucherNotFound, "promotion code %s not found", code)
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// CodeExists checks uniqueness, optionally excluding one row (updates).
func (d *DB) CodeExists(ctx context.Context, code, excludeID string) (bool, error) {
	q := d.Bun.NewSelect().
		Model((*models.Promotion)(nil)).
		Where("code = ?", code)
	if excludeID != "" {
		q = q.Where("promo_id != ?", excludeID)
	}
	return q.Exists(ctx)
}

func (d *DB) Insert(ctx context.Context, promo *models.Promotion) error {
	_, err := d.Bun.NewInsert().Model(promo).Exec(ctx)
	return err
}

func (d *DB) Update(ctx context.Context, promo *models.Promotion) error {
	_, err := d.Bun.NewUpdate().
		Model(promo).
		Column("code", "discount_percent", "start_date", "end_date",
			"status", "is_deleted", "deleted_by", "deleted_at", "updated_at").
		Where("promo_id = ?", promo.PromoID).
		Exec(ctx)
	return err
}

// UpdateStatus writes only the stored status hint; used by the sweep.
func (d *DB) UpdateStatus(ctx context.Context, id string, status models.VoucherStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Promotion)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("promo_id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) List(ctx context.Context, includeDeleted bool) ([]models.Promotion, error) {
	var promos []models.Promotion
	q := d.Bun.NewSelect().Model(&promos).Order("created_at DESC")
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return promos, nil
}
