package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Promotion rows are soft-deleted. Start and end dates are inclusive and
// compared at day granularity.
type Promotion struct {
	bun.BaseModel `bun:"table:promotions"`

	PromoID         string        `bun:"promo_id,pk" json:"promo_id"`
	Code            string        `bun:"code,notnull,unique" json:"code"`
	DiscountPercent float64       `bun:"discount_percent,notnull" json:"discount_percent"`
	StartDate       *time.Time    `bun:"start_date,nullzero" json:"start_date,omitempty"`
	EndDate         *time.Time    `bun:"end_date,nullzero" json:"end_date,omitempty"`
	Status          VoucherStatus `bun:"status,notnull" json:"status"`
	IsDeleted       bool          `bun:"is_deleted,notnull,default:false" json:"is_deleted"`
	DeletedBy       string        `bun:"deleted_by,nullzero" json:"deleted_by,omitempty"`
	DeletedAt       *time.Time    `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
	CreatedAt       time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at"`
}

// PromotionRequest is the create/update payload.
type PromotionRequest struct {
	Code            string        `json:"code"`
	DiscountPercent float64       `json:"discount_percent"`
	StartDate       *time.Time    `json:"start_date,omitempty"`
	EndDate         *time.Time    `json:"end_date,omitempty"`
	Status          VoucherStatus `json:"status,omitempty"`
}

// PromotionView carries the recomputed effective status alongside the row.
type PromotionView struct {
	PromoID         string        `json:"promo_id"`
	Code            string        `json:"code"`
	DiscountPercent float64       `json:"discount_percent"`
	StartDate       *time.Time    `json:"start_date,omitempty"`
	EndDate         *time.Time    `json:"end_date,omitempty"`
	EffectiveStatus VoucherStatus `json:"status"`
	IsDeleted       bool          `json:"is_deleted"`
}
