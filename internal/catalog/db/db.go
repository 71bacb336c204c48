package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"bookstore-orders/internal/apperr"
	"bookstore-orders/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// GetBookByID fetches one catalog row.
func (d *DB) GetBookByID(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	err := d.Bun.NewSelect().
		Model(&book).
		Where("book_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeBookNotFound, "book %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBookForUpdate fetches a book inside idb with a row lock, so the
// availability check and the dependent write happen under one lock.
// SQLite (tests) has no FOR UPDATE; its writes are serialized anyway.
func (d *DB) GetBookForUpdate(ctx context.Context, idb bun.IDB, id string) (*models.Book, error) {
	var book models.Book
	q := idb.NewSelect().
		Model(&book).
		Where("book_id = ?", id).
		Limit(1)
	if d.Bun.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeBookNotFound, "book %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ReservedQuantity sums line-item quantities over orders whose status holds
// stock. Always computed live; never cached.
func (d *DB) ReservedQuantity(ctx context.Context, idb bun.IDB, bookID string) (int, error) {
	var reserved int
	err := idb.NewSelect().
		ColumnExpr("COALESCE(SUM(oi.quantity), 0)").
		TableExpr("order_items AS oi").
		Join("JOIN orders AS o ON o.order_id = oi.order_id").
		Where("oi.book_id = ?", bookID).
		Where("o.status IN (?)", bun.In(models.StockHoldingStatuses)).
		Scan(ctx, &reserved)
	if err != nil {
		return 0, err
	}
	return reserved, nil
}

// AvailableQuantity derives availability = physical stock - reserved.
func (d *DB) AvailableQuantity(ctx context.Context, bookID string) (*models.BookAvailability, error) {
	book, err := d.GetBookByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	reserved, err := d.ReservedQuantity(ctx, d.Bun, bookID)
	if err != nil {
		return nil, err
	}
	return &models.BookAvailability{
		BookID:            bookID,
		StockQuantity:     book.StockQuantity,
		ReservedQuantity:  reserved,
		AvailableQuantity: book.StockQuantity - reserved,
	}, nil
}

// UpdateStock sets the physical count. Callers must hold the row lock when
// this runs inside an order transition.
func (d *DB) UpdateStock(ctx context.Context, idb bun.IDB, bookID string, stock int) error {
	_, err := idb.NewUpdate().
		Model((*models.Book)(nil)).
		Set("stock_quantity = ?", stock).
		Set("updated_at = ?", time.Now()).
		Where("book_id = ?", bookID).
		Exec(ctx)
	return err
}

// SetStock is the non-transactional variant used by the admin inventory path.
func (d *DB) SetStock(ctx context.Context, bookID string, stock int) error {
	return d.UpdateStock(ctx, d.Bun, bookID, stock)
}

// CreateBook inserts a catalog row (seeding and admin paths).
func (d *DB) CreateBook(ctx context.Context, book *models.Book) error {
	_, err := d.Bun.NewInsert().Model(book).Exec(ctx)
	return err
}
