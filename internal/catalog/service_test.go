package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/catalog"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
)

// MockStore is a mock implementation of the StoreLayer interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetBookByID(ctx context.Context, id string) (*models.Book, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Book), args.Error(1)
}

func (m *MockStore) AvailableQuantity(ctx context.Context, bookID string) (*models.BookAvailability, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookAvailability), args.Error(1)
}

func (m *MockStore) SetStock(ctx context.Context, bookID string, stock int) error {
	args := m.Called(ctx, bookID, stock)
	return args.Error(0)
}

func TestAvailableQuantity(t *testing.T) {
	store := new(MockStore)
	store.On("AvailableQuantity", mock.Anything, "book-1").Return(&models.BookAvailability{
		BookID:            "book-1",
		StockQuantity:     10,
		ReservedQuantity:  4,
		AvailableQuantity: 6,
	}, nil)
	svc := catalog.NewService(store, logger.NewLogger())

	availability, err := svc.AvailableQuantity(context.Background(), "book-1")
	assert.NoError(t, err)
	assert.Equal(t, 6, availability.AvailableQuantity)
}

func TestUpdateInventory(t *testing.T) {
	staff := models.Caller{UserID: "staff-1", Role: models.RoleStaff}

	t.Run("staff can set stock", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetBookByID", mock.Anything, "book-1").Return(&models.Book{BookID: "book-1", StockQuantity: 3}, nil)
		store.On("SetStock", mock.Anything, "book-1", 12).Return(nil)
		svc := catalog.NewService(store, logger.NewLogger())

		book, err := svc.UpdateInventory(context.Background(), staff, "book-1", 12)
		assert.NoError(t, err)
		assert.Equal(t, 12, book.StockQuantity)
		store.AssertExpectations(t)
	})

	t.Run("non-staff caller is rejected", func(t *testing.T) {
		svc := catalog.NewService(new(MockStore), logger.NewLogger())

		_, err := svc.UpdateInventory(context.Background(), models.Caller{UserID: "u1", Role: models.RoleUser}, "book-1", 12)
		assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
	})

	t.Run("negative stock is rejected", func(t *testing.T) {
		svc := catalog.NewService(new(MockStore), logger.NewLogger())

		_, err := svc.UpdateInventory(context.Background(), staff, "book-1", -1)
		assert.Equal(t, apperr.CodeInvalidQuantity, apperr.CodeOf(err))
	})
}
