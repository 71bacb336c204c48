package catalog

import (
	"context"
	"fmt"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
)

// Service exposes the availability read path and the admin inventory write.
type Service struct {
	DB     StoreLayer
	Logger *logger.Logger
}

// StoreLayer is the persistence boundary the availability calculator uses.
type StoreLayer interface {
	GetBookByID(ctx context.Context, id string) (*models.Book, error)
	AvailableQuantity(ctx context.Context, bookID string) (*models.BookAvailability, error)
	SetStock(ctx context.Context, bookID string, stock int) error
}

func NewService(db StoreLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log}
}

// AvailableQuantity is a pure read: physical stock minus reserved quantity.
// Advisory at cart time; the authoritative check re-runs inside the checkout
// transaction.
func (s *Service) AvailableQuantity(ctx context.Context, bookID string) (*models.BookAvailability, error) {
	return s.DB.AvailableQuantity(ctx, bookID)
}

// UpdateInventory sets a book's absolute physical stock level (staff only).
func (s *Service) UpdateInventory(ctx context.Context, caller models.Caller, bookID string, stock int) (*models.Book, error) {
	if !caller.Staff() {
		return nil, apperr.New(apperr.CodeUnauthorized, "inventory updates require staff role")
	}
	if stock < 0 {
		return nil, apperr.Newf(apperr.CodeInvalidQuantity, "stock quantity must not be negative, got %d", stock)
	}

	book, err := s.DB.GetBookByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if err := s.DB.SetStock(ctx, bookID, stock); err != nil {
		return nil, fmt.Errorf("failed to update stock for book %s: %w", bookID, err)
	}

	s.Logger.LogDatabase("UPDATE", "books", fmt.Sprintf("stock for %s set to %d", bookID, stock))
	book.StockQuantity = stock
	return book, nil
}
