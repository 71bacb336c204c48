package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
)

// Store is the persistence boundary for promotions.
type Store interface {
	GetByID(ctx context.Context, id string) (*models.Promotion, error)
	GetByCode(ctx context.Context, code string) (*models.Promotion, error)
	CodeExists(ctx context.Context, code, excludeID string) (bool, error)
	Insert(ctx context.Context, promo *models.Promotion) error
	Update(ctx context.Context, promo *models.Promotion) error
	UpdateStatus(ctx context.Context, id string, status models.VoucherStatus) error
	List(ctx context.Context, includeDeleted bool) ([]models.Promotion, error)
}

type Service struct {
	DB     Store
	Logger *logger.Logger

	now func() time.Time
}

func NewService(db Store, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log, now: time.Now}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CalculateStatus derives the effective status from stored fields and the
// reference date. The stored status column is only a hint; enforcement always
// goes through this function. A promotion whose start date is in the future
// resolves to scheduled, not deleted.
func CalculateStatus(promo *models.Promotion, referenceDate time.Time) models.VoucherStatus {
	if promo.IsDeleted {
		return models.VoucherDeleted
	}
	ref := dateOnly(referenceDate)
	if promo.EndDate != nil && dateOnly(*promo.EndDate).Before(ref) {
		return models.VoucherInactive
	}
	if promo.StartDate != nil && dateOnly(*promo.StartDate).After(ref) {
		return models.VoucherScheduled
	}
	// Dates are in range. A stored scheduled hint is stale once the start
	// date arrives; without this the promotion would never become usable.
	if promo.Status == models.VoucherScheduled {
		return models.VoucherActive
	}
	return promo.Status
}

func determineInitialStatus(start, end *time.Time, today time.Time) models.VoucherStatus {
	ref := dateOnly(today)
	if start != nil && dateOnly(*start).After(ref) {
		return models.VoucherScheduled
	}
	if end != nil && dateOnly(*end).Before(ref) {
		return models.VoucherInactive
	}
	return models.VoucherActive
}

func validateDateRange(start, end *time.Time) error {
	if start != nil && end != nil && dateOnly(*end).Before(dateOnly(*start)) {
		return apperr.New(apperr.CodeInvalidDateRange, "end date must not be before start date")
	}
	return nil
}

func validateActivation(start, end *time.Time, today time.Time) error {
	ref := dateOnly(today)
	if start != nil && dateOnly(*start).After(ref) {
		return apperr.New(apperr.CodeCannotActivateFuturePromotion, "cannot activate a promotion that has not started")
	}
	if end != nil && dateOnly(*end).Before(ref) {
		return apperr.New(apperr.CodeCannotActivateExpiredPromotion, "cannot activate an expired promotion")
	}
	return nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return dateOnly(*a).Equal(dateOnly(*b))
}

func validateDiscountPercent(percent float64) error {
	if percent <= 0 || percent > 100 {
		return apperr.Newf(apperr.CodeInvalidDiscountPercent, "discount percent must be in (0, 100], got %v", percent)
	}
	return nil
}

func (s *Service) validateCode(ctx context.Context, code, excludeID string) error {
	if code == "" {
		return apperr.New(apperr.CodePromotionCodeExisted, "promotion code must not be empty")
	}
	exists, err := s.DB.CodeExists(ctx, code, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Newf(apperr.CodePromotionCodeExisted, "promotion code %s already exists", code)
	}
	return nil
}

func (s *Service) view(promo *models.Promotion, ref time.Time) *models.PromotionView {
	return &models.PromotionView{
		PromoID:         promo.PromoID,
		Code:            promo.Code,
		DiscountPercent: promo.DiscountPercent,
		StartDate:       promo.StartDate,
		EndDate:         promo.EndDate,
		EffectiveStatus: CalculateStatus(promo, ref),
		IsDeleted:       promo.IsDeleted,
	}
}

func (s *Service) Create(ctx context.Context, caller models.Caller, req models.PromotionRequest) (*models.PromotionView, error) {
	if !caller.Staff() {
		return nil, apperr.New(apperr.CodeUnauthorized, "promotion management requires staff role")
	}
	if err := validateDateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if err := s.validateCode(ctx, req.Code, ""); err != nil {
		return nil, err
	}
	if err := validateDiscountPercent(req.DiscountPercent); err != nil {
		return nil, err
	}

	today := s.now()
	status := req.Status
	if status == "" {
		status = determineInitialStatus(req.StartDate, req.EndDate, today)
	} else if status == models.VoucherActive {
		if err := validateActivation(req.StartDate, req.EndDate, today); err != nil {
			return nil, err
		}
	}

	promo := &models.Promotion{
		PromoID:         uuid.NewString(),
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Status:          status,
		IsDeleted:       false,
		CreatedAt:       today,
		UpdatedAt:       today,
	}
	if err := s.DB.Insert(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}

	s.Logger.LogPromotion("CREATE", promo.PromoID, fmt.Sprintf("code=%s percent=%v", promo.Code, promo.DiscountPercent))
	return s.view(promo, today), nil
}

func (s *Service) Update(ctx context.Context, caller models.Caller, id string, req models.PromotionRequest) (*models.PromotionView, error) {
	if !caller.Staff() {
		return nil, apperr.New(apperr.CodeUnauthorized, "promotion management requires staff role")
	}

	promo, err := s.DB.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if promo.IsDeleted {
		return nil, apperr.New(apperr.CodeCannotUpdateDeletedPromotion, "cannot update a deleted promotion")
	}

	if err := validateDateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if promo.Code != req.Code {
		if err := s.validateCode(ctx, req.Code, id); err != nil {
			return nil, err
		}
	}
	if err := validateDiscountPercent(req.DiscountPercent); err != nil {
		return nil, err
	}

	datesChanged := !sameDate(promo.StartDate, req.StartDate) || !sameDate(promo.EndDate, req.EndDate)
	promo.Code = req.Code
	promo.DiscountPercent = req.DiscountPercent
	promo.StartDate = req.StartDate
	promo.EndDate = req.EndDate

	today := s.now()
	if req.Status != "" {
		if req.Status == models.VoucherActive {
			if err := validateActivation(promo.StartDate, promo.EndDate, today); err != nil {
				return nil, err
			}
		}
		promo.Status = req.Status
	} else if datesChanged {
		// New dates invalidate the stored hint; recompute so a stale
		// scheduled or inactive value cannot stick to the new window.
		promo.Status = determineInitialStatus(promo.StartDate, promo.EndDate, today)
	}

	promo.UpdatedAt = today
	if err := s.DB.Update(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to update promotion %s: %w", id, err)
	}

	s.Logger.LogPromotion("UPDATE", promo.PromoID, "promotion updated")
	return s.view(promo, today), nil
}

// Delete soft-deletes a promotion and records who removed it.
func (s *Service) Delete(ctx context.Context, caller models.Caller, id string) error {
	if !caller.Staff() {
		return apperr.New(apperr.CodeUnauthorized, "promotion management requires staff role")
	}

	promo, err := s.DB.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if promo.IsDeleted {
		return apperr.New(apperr.CodePromotionAlreadyDeleted, "promotion is already deleted")
	}

	now := s.now()
	promo.IsDeleted = true
	promo.Status = models.VoucherDeleted
	promo.DeletedBy = caller.UserID
	promo.DeletedAt = &now
	promo.UpdatedAt = now

	if err := s.DB.Update(ctx, promo); err != nil {
		return fmt.Errorf("failed to delete promotion %s: %w", id, err)
	}
	s.Logger.LogPromotion("DELETE", promo.PromoID, fmt.Sprintf("deleted by %s", caller.UserID))
	return nil
}

// Restore undoes a soft delete; the stored status is recomputed from dates.
func (s *Service) Restore(ctx context.Context, caller models.Caller, id string) (*models.PromotionView, error) {
	if !caller.Staff() {
		return nil, apperr.New(apperr.CodeUnauthorized, "promotion management requires staff role")
	}

	promo, err := s.DB.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !promo.IsDeleted {
		return nil, apperr.New(apperr.CodePromotionNotDeleted, "promotion is not deleted")
	}

	today := s.now()
	promo.IsDeleted = false
	promo.DeletedBy = ""
	promo.DeletedAt = nil
	promo.Status = determineInitialStatus(promo.StartDate, promo.EndDate, today)
	promo.UpdatedAt = today

	if err := s.DB.Update(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to restore promotion %s: %w", id, err)
	}
	s.Logger.LogPromotion("RESTORE", promo.PromoID, "promotion restored")
	return s.view(promo, today), nil
}

// List returns promotions with recomputed effective statuses (staff view).
func (s *Service) List(ctx context.Context, caller models.Caller, includeDeleted bool) ([]models.PromotionView, error) {
	if !caller.Staff() {
		return nil, apperr.New(apperr.CodeUnauthorized, "promotion listing requires staff role")
	}
	promos, err := s.DB.List(ctx, includeDeleted)
	if err != nil {
		return nil, err
	}
	today := s.now()
	views := make([]models.PromotionView, 0, len(promos))
	for i := range promos {
		views = append(views, *s.view(&promos[i], today))
	}
	return views, nil
}

// Available is the public listing: non-deleted promotions whose effective
// status resolves to active today.
func (s *Service) Available(ctx context.Context) ([]models.PromotionView, error) {
	promos, err := s.DB.List(ctx, false)
	if err != nil {
		return nil, err
	}
	today := s.now()
	views := make([]models.PromotionView, 0)
	for i := range promos {
		if CalculateStatus(&promos[i], today) == models.VoucherActive {
			views = append(views, *s.view(&promos[i], today))
		}
	}
	return views, nil
}

// ApplyCode validates a voucher for checkout and returns the discount amount
// for the given subtotal. Enforcement recomputes the effective status live.
func (s *Service) ApplyCode(ctx context.Context, code string, subtotal float64) (*models.Promotion, float64, error) {
	promo, err := s.DB.GetByCode(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	if promo.IsDeleted {
		return nil, 0, apperr.New(apperr.CodePromotionAlreadyDeleted, "promotion has been deleted")
	}

	switch CalculateStatus(promo, s.now()) {
	case models.VoucherActive:
		// usable
	case models.VoucherScheduled:
		return nil, 0, apperr.Newf(apperr.CodeVoucherNotUsableYet, "voucher %s is not usable yet", code)
	case models.VoucherDeleted:
		return nil, 0, apperr.New(apperr.CodePromotionAlreadyDeleted, "promotion has been deleted")
	default:
		return nil, 0, apperr.Newf(apperr.CodeVoucherExpired, "voucher %s has expired", code)
	}

	discount := subtotal * promo.DiscountPercent / 100
	return promo, discount, nil
}

// SweepStatuses recomputes and persists the stored status for every
// non-deleted promotion. Idempotent: rows whose stored status already matches
// the computed one are not written.
func (s *Service) SweepStatuses(ctx context.Context) (int, error) {
	promos, err := s.DB.List(ctx, false)
	if err != nil {
		return 0, err
	}

	today := s.now()
	updated := 0
	for i := range promos {
		computed := CalculateStatus(&promos[i], today)
		if promos[i].Status == computed {
			continue
		}
		if err := s.DB.UpdateStatus(ctx, promos[i].PromoID, computed); err != nil {
			return updated, fmt.Errorf("failed to sync status for promotion %s: %w", promos[i].PromoID, err)
		}
		updated++
	}
	return updated, nil
}
