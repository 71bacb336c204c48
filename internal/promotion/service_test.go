package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
)

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*models.Promotion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Promotion), args.Error(1)
}

func (m *MockStore) GetByCode(ctx context.Context, code string) (*models.Promotion, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Promotion), args.Error(1)
}

func (m *MockStore) CodeExists(ctx context.Context, code, excludeID string) (bool, error) {
	args := m.Called(ctx, code, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Insert(ctx context.Context, promo *models.Promotion) error {
	args := m.Called(ctx, promo)
	return args.Error(0)
}

func (m *MockStore) Update(ctx context.Context, promo *models.Promotion) error {
	args := m.Called(ctx, promo)
	return args.Error(0)
}

func (m *MockStore) UpdateStatus(ctx context.Context, id string, status models.VoucherStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockStore) List(ctx context.Context, includeDeleted bool) ([]models.Promotion, error) {
	args := m.Called(ctx, includeDeleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Promotion), args.Error(1)
}

var today = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestService(store Store) *Service {
	svc := NewService(store, logger.NewLogger())
	svc.now = func() time.Time { return today }
	return svc
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestCalculateStatus(t *testing.T) {
	tests := []struct {
		name  string
		promo models.Promotion
		want  models.VoucherStatus
	}{
		{
			name:  "deleted wins over everything",
			promo: models.Promotion{IsDeleted: true, Status: models.VoucherActive},
			want:  models.VoucherDeleted,
		},
		{
			name:  "end date in the past",
			promo: models.Promotion{Status: models.VoucherActive, EndDate: datePtr(2025, 6, 14)},
			want:  models.VoucherInactive,
		},
		{
			name:  "end date today is still usable",
			promo: models.Promotion{Status: models.VoucherActive, EndDate: datePtr(2025, 6, 15)},
			want:  models.VoucherActive,
		},
		{
			name:  "start date tomorrow is scheduled, not deleted",
			promo: models.Promotion{Status: models.VoucherActive, StartDate: datePtr(2025, 6, 16)},
			want:  models.VoucherScheduled,
		},
		{
			name:  "start date today is usable",
			promo: models.Promotion{Status: models.VoucherActive, StartDate: datePtr(2025, 6, 15)},
			want:  models.VoucherActive,
		},
		{
			name:  "open-ended falls back to stored status",
			promo: models.Promotion{Status: models.VoucherInactive},
			want:  models.VoucherInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateStatus(&tt.promo, today))
		})
	}
}

func TestCreateValidations(t *testing.T) {
	staff := models.Caller{UserID: "staff-1", Role: models.RoleStaff}

	t.Run("rejects inverted date range", func(t *testing.T) {
		svc := newTestService(new(MockStore))
		_, err := svc.Create(context.Background(), staff, models.PromotionRequest{
			Code:            "SUMMER",
			DiscountPercent: 10,
			StartDate:       datePtr(2025, 7, 1),
			EndDate:         datePtr(2025, 6, 1),
		})
		assert.Equal(t, apperr.CodeInvalidDateRange, apperr.CodeOf(err))
	})

	t.Run("rejects duplicate code", func(t *testing.T) {
		store := new(MockStore)
		store.On("CodeExists", mock.Anything, "SUMMER", "").Return(true, nil)
		svc := newTestService(store)

		_, err := svc.Create(context.Background(), staff, models.PromotionRequest{
			Code:            "SUMMER",
			DiscountPercent: 10,
		})
		assert.Equal(t, apperr.CodePromotionCodeExisted, apperr.CodeOf(err))
	})

	t.Run("rejects discount outside (0,100]", func(t *testing.T) {
		store := new(MockStore)
		store.On("CodeExists", mock.Anything, "SUMMER", "").Return(false, nil)
		svc := newTestService(store)

		_, err := svc.Create(context.Background(), staff, models.PromotionRequest{
			Code:            "SUMMER",
			DiscountPercent: 120,
		})
		assert.Equal(t, apperr.CodeInvalidDiscountPercent, apperr.CodeOf(err))
	})

	t.Run("rejects non-staff caller", func(t *testing.T) {
		svc := newTestService(new(MockStore))
		_, err := svc.Create(context.Background(), models.Caller{UserID: "u1", Role: models.RoleUser}, models.PromotionRequest{
			Code:            "SUMMER",
			DiscountPercent: 10,
		})
		assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
	})

	t.Run("rejects explicit active status before the start date", func(t *testing.T) {
		store := new(MockStore)
		store.On("CodeExists", mock.Anything, "PREORDER", "").Return(false, nil)
		svc := newTestService(store)

		_, err := svc.Create(context.Background(), staff, models.PromotionRequest{
			Code:            "PREORDER",
			DiscountPercent: 15,
			Status:          models.VoucherActive,
			StartDate:       datePtr(2025, 7, 1),
		})
		assert.Equal(t, apperr.CodeCannotActivateFuturePromotion, apperr.CodeOf(err))
	})

	t.Run("future start date creates a scheduled promotion", func(t *testing.T) {
		store := new(MockStore)
		store.On("CodeExists", mock.Anything, "PREORDER", "").Return(false, nil)
		store.On("Insert", mock.Anything, mock.MatchedBy(func(p *models.Promotion) bool {
			return p.Status == models.VoucherScheduled
		})).Return(nil)
		svc := newTestService(store)

		view, err := svc.Create(context.Background(), staff, models.PromotionRequest{
			Code:            "PREORDER",
			DiscountPercent: 15,
			StartDate:       datePtr(2025, 7, 1),
		})
		assert.NoError(t, err)
		assert.Equal(t, models.VoucherScheduled, view.EffectiveStatus)
		store.AssertExpectations(t)
	})
}

func TestApplyCode(t *testing.T) {
	t.Run("active voucher discounts the subtotal", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetByCode", mock.Anything, "TEN").Return(&models.Promotion{
			PromoID:         "p1",
			Code:            "TEN",
			DiscountPercent: 10,
			Status:          models.VoucherActive,
		}, nil)
		svc := newTestService(store)

		promo, discount, err := svc.ApplyCode(context.Background(), "TEN", 200)
		assert.NoError(t, err)
		assert.Equal(t, "p1", promo.PromoID)
		assert.InDelta(t, 20.0, discount, 0.001)
	})

	t.Run("scheduled voucher is not usable yet", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetByCode", mock.Anything, "SOON").Return(&models.Promotion{
			Code:            "SOON",
			DiscountPercent: 10,
			Status:          models.VoucherActive,
			StartDate:       datePtr(2025, 6, 16),
		}, nil)
		svc := newTestService(store)

		_, _, err := svc.ApplyCode(context.Background(), "SOON", 100)
		assert.Equal(t, apperr.CodeVoucherNotUsableYet, apperr.CodeOf(err))
	})

	t.Run("expired voucher is rejected", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetByCode", mock.Anything, "OLD").Return(&models.Promotion{
			Code:            "OLD",
			DiscountPercent: 10,
			Status:          models.VoucherActive,
			EndDate:         datePtr(2025, 6, 1),
		}, nil)
		svc := newTestService(store)

		_, _, err := svc.ApplyCode(context.Background(), "OLD", 100)
		assert.Equal(t, apperr.CodeVoucherExpired, apperr.CodeOf(err))
	})

	t.Run("deleted voucher is rejected", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetByCode", mock.Anything, "GONE").Return(&models.Promotion{
			Code:      "GONE",
			IsDeleted: true,
		}, nil)
		svc := newTestService(store)

		_, _, err := svc.ApplyCode(context.Background(), "GONE", 100)
		assert.Equal(t, apperr.CodePromotionAlreadyDeleted, apperr.CodeOf(err))
	})
}

func TestScheduledPromotionBecomesUsable(t *testing.T) {
	staff := models.Caller{UserID: "staff-1", Role: models.RoleStaff}

	store := new(MockStore)
	store.On("CodeExists", mock.Anything, "SOON", "").Return(false, nil)
	var stored *models.Promotion
	store.On("Insert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.Promotion)
	}).Return(nil)
	svc := newTestService(store)

	// Created the day before its start date: not usable yet.
	_, err := svc.Create(context.Background(), staff, models.PromotionRequest{
		Code:            "SOON",
		DiscountPercent: 10,
		StartDate:       datePtr(2025, 6, 16),
	})
	assert.NoError(t, err)
	assert.Equal(t, models.VoucherScheduled, stored.Status)

	store.On("GetByCode", mock.Anything, "SOON").Return(stored, nil)

	_, _, err = svc.ApplyCode(context.Background(), "SOON", 100)
	assert.Equal(t, apperr.CodeVoucherNotUsableYet, apperr.CodeOf(err))

	// The start date arrives; the stored row still says scheduled, but the
	// voucher must now work without any intervening write.
	svc.now = func() time.Time { return time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC) }

	assert.Equal(t, models.VoucherActive, CalculateStatus(stored, svc.now()))

	promo, discount, err := svc.ApplyCode(context.Background(), "SOON", 100)
	assert.NoError(t, err)
	assert.Equal(t, "SOON", promo.Code)
	assert.InDelta(t, 10.0, discount, 0.001)
}

func TestSweepPromotesScheduledOnStartDate(t *testing.T) {
	started := models.Promotion{
		PromoID:   "p1",
		Status:    models.VoucherScheduled,
		StartDate: datePtr(2025, 6, 15),
	}

	store := new(MockStore)
	store.On("List", mock.Anything, false).Return([]models.Promotion{started}, nil).Once()
	store.On("UpdateStatus", mock.Anything, "p1", models.VoucherActive).Return(nil).Once()
	svc := newTestService(store)

	updated, err := svc.SweepStatuses(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, updated)
	store.AssertExpectations(t)
}

func TestUpdateRecomputesStatusOnDateChange(t *testing.T) {
	staff := models.Caller{UserID: "staff-1", Role: models.RoleStaff}

	// Swept to inactive after expiry; extending the window with no explicit
	// status must bring it back instead of leaving the stale hint.
	store := new(MockStore)
	store.On("GetByID", mock.Anything, "p1").Return(&models.Promotion{
		PromoID:         "p1",
		Code:            "OLD",
		DiscountPercent: 10,
		Status:          models.VoucherInactive,
		EndDate:         datePtr(2025, 6, 1),
	}, nil)
	store.On("Update", mock.Anything, mock.MatchedBy(func(p *models.Promotion) bool {
		return p.Status == models.VoucherActive
	})).Return(nil)
	svc := newTestService(store)

	view, err := svc.Update(context.Background(), staff, "p1", models.PromotionRequest{
		Code:            "OLD",
		DiscountPercent: 10,
		EndDate:         datePtr(2025, 6, 30),
	})
	assert.NoError(t, err)
	assert.Equal(t, models.VoucherActive, view.EffectiveStatus)
	store.AssertExpectations(t)
}

func TestDeleteAndRestore(t *testing.T) {
	staff := models.Caller{UserID: "staff-1", Role: models.RoleAdmin}

	t.Run("delete records audit fields", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetByID", mock.Anything, "p1").Return(&models.Promotion{PromoID: "p1", Status: models.VoucherActive}, nil)
		store.On("Update", mock.Anything, mock.MatchedBy(func(p *models.Promotion) bool {
			return p.IsDeleted && p.DeletedBy == "staff-1" && p.DeletedAt != nil && p.Status == models.VoucherDeleted
		})).Return(nil)
		svc := newTestService(store)

		assert.NoError(t, svc.Delete(context.Background(), staff, "p1"))
		store.AssertExpectations(t)
	})

	t.Run("double delete fails", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetByID", mock.Anything, "p1").Return(&models.Promotion{PromoID: "p1", IsDeleted: true}, nil)
		svc := newTestService(store)

		err := svc.Delete(context.Background(), staff, "p1")
		assert.Equal(t, apperr.CodePromotionAlreadyDeleted, apperr.CodeOf(err))
	})

	t.Run("restore recomputes status from dates", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetByID", mock.Anything, "p1").Return(&models.Promotion{
			PromoID:   "p1",
			IsDeleted: true,
			Status:    models.VoucherDeleted,
			StartDate: datePtr(2025, 7, 1),
		}, nil)
		store.On("Update", mock.Anything, mock.MatchedBy(func(p *models.Promotion) bool {
			return !p.IsDeleted && p.Status == models.VoucherScheduled && p.DeletedAt == nil
		})).Return(nil)
		svc := newTestService(store)

		view, err := svc.Restore(context.Background(), staff, "p1")
		assert.NoError(t, err)
		assert.Equal(t, models.VoucherScheduled, view.EffectiveStatus)
		store.AssertExpectations(t)
	})

	t.Run("restore of a live promotion fails", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetByID", mock.Anything, "p1").Return(&models.Promotion{PromoID: "p1"}, nil)
		svc := newTestService(store)

		_, err := svc.Restore(context.Background(), staff, "p1")
		assert.Equal(t, apperr.CodePromotionNotDeleted, apperr.CodeOf(err))
	})
}

func TestSweepStatusesIsIdempotent(t *testing.T) {
	expired := models.Promotion{
		PromoID: "p1",
		Status:  models.VoucherActive,
		EndDate: datePtr(2025, 6, 1),
	}
	current := models.Promotion{
		PromoID: "p2",
		Status:  models.VoucherActive,
	}

	store := new(MockStore)
	store.On("List", mock.Anything, false).Return([]models.Promotion{expired, current}, nil).Once()
	store.On("UpdateStatus", mock.Anything, "p1", models.VoucherInactive).Return(nil).Once()
	svc := newTestService(store)

	updated, err := svc.SweepStatuses(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, updated)

	// Second sweep sees the synced status and writes nothing.
	synced := expired
	synced.Status = models.VoucherInactive
	store.On("List", mock.Anything, false).Return([]models.Promotion{synced, current}, nil).Once()

	updated, err = svc.SweepStatuses(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, updated)
	store.AssertExpectations(t)
}
