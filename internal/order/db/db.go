package db

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"bookstore-orders/internal/apperr"
	catalogdb "bookstore-orders/internal/catalog/db"
	"bookstore-orders/internal/models"
)

// DB is the order repository. Checkout and the stock-mutating transitions run
// as single transactions with the affected book rows locked, which is what
// keeps availability and physical stock consistent under concurrent requests.
type DB struct {
	Bun     *bun.DB
	Catalog *catalogdb.DB
}

// CreateOrderWithItems persists an order and its line items atomically. Book
// rows are locked (sorted by id, so concurrent checkouts cannot deadlock)
// before the availability check, closing the read-check-write race: two
// requests for the last unit serialize on the row lock and the second one
// sees the first one's reservation.
func (d *DB) CreateOrderWithItems(ctx context.Context, order models.Order, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		requested := make(map[string]int, len(items))
		for _, item := range items {
			requested[item.BookID] += item.Quantity
		}
		bookIDs := make([]string, 0, len(requested))
		for id := range requested {
			bookIDs = append(bookIDs, id)
		}
		sort.Strings(bookIDs)

		for _, bookID := range bookIDs {
			book, err := d.Catalog.GetBookForUpdate(ctx, tx, bookID)
			if err != nil {
				return err
			}
			reserved, err := d.Catalog.ReservedQuantity(ctx, tx, bookID)
			if err != nil {
				return err
			}
			if book.StockQuantity-reserved < requested[bookID] {
				return apperr.Newf(apperr.CodeInsufficientStock,
					"book %s has %d available, %d requested",
					bookID, book.StockQuantity-reserved, requested[bookID])
			}
		}

		if _, err := tx.NewInsert().Model(&order).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeOrderNotFound, "order %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Order("book_id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateOrder writes the mutable order columns. Line items are immutable and
// never touched here.
func (d *DB) UpdateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewUpdate().
		Model(&order).
		Column("status", "payment_status", "updated_at").
		Where("order_id = ?", order.OrderID).
		Exec(ctx)
	return err
}

// MarkDelivered subtracts each line's quantity from physical stock and flips
// the order to delivered/paid, all in one transaction. Stock is checked
// before any write; a would-be-negative result aborts with no mutation.
func (d *DB) MarkDelivered(ctx context.Context, orderID string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		items, err := d.itemsForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			book, err := d.Catalog.GetBookForUpdate(ctx, tx, item.BookID)
			if err != nil {
				return err
			}
			newStock := book.StockQuantity - item.Quantity
			if newStock < 0 {
				return apperr.Newf(apperr.CodeInsufficientStock,
					"book %s stock %d cannot cover delivered quantity %d",
					item.BookID, book.StockQuantity, item.Quantity)
			}
			if err := d.Catalog.UpdateStock(ctx, tx, item.BookID, newStock); err != nil {
				return err
			}
		}

		_, err = tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", models.OrderDelivered).
			Set("payment_status = ?", models.PaymentPaid).
			Set("updated_at = ?", time.Now()).
			Where("order_id = ?", orderID).
			Exec(ctx)
		return err
	})
}

// MarkReturnRequested flips the order to return_requested. When the prior
// status was delivered the physical stock was already subtracted, so it is
// restored here in the same transaction.
func (d *DB) MarkReturnRequested(ctx context.Context, orderID string, restoreStock bool) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if restoreStock {
			items, err := d.itemsForUpdate(ctx, tx, orderID)
			if err != nil {
				return err
			}
			for _, item := range items {
				book, err := d.Catalog.GetBookForUpdate(ctx, tx, item.BookID)
				if err != nil {
					return err
				}
				if err := d.Catalog.UpdateStock(ctx, tx, item.BookID, book.StockQuantity+item.Quantity); err != nil {
					return err
				}
			}
		}

		_, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", models.OrderReturnRequested).
			Set("updated_at = ?", time.Now()).
			Where("order_id = ?", orderID).
			Exec(ctx)
		return err
	})
}

func (d *DB) itemsForUpdate(ctx context.Context, tx bun.Tx, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := tx.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Order("book_id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (d *DB) GetAddress(ctx context.Context, id string) (*models.Address, error) {
	var address models.Address
	err := d.Bun.NewSelect().
		Model(&address).
		Where("address_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeAddressNotFound, "address %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (d *DB) GetPromotionByID(ctx context.Context, id string) (*models.Promotion, error) {
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

// ListOrders returns one page of orders, newest first, plus the total count
// for the filter.
func (d *DB) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	var orders []models.Order
	q := d.Bun.NewSelect().Model(&orders)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = 20
	}

	err = q.Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Scan(ctx)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// Statistics aggregates per-status counters and revenue. Revenue excludes
// cancelled and returned orders.
func (d *DB) Statistics(ctx context.Context) (*models.OrderStatistics, error) {
	counts := make(map[models.OrderStatus]int, len(models.AllOrderStatuses))
	var rows []struct {
		Status models.OrderStatus `bun:"status"`
		Count  int                `bun:"count"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, row := range rows {
		counts[row.Status] = row.Count
		total += row.Count
	}

	var revenue float64
	err = d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("COALESCE(SUM(total_amount), 0)").
		Where("status NOT IN (?)", bun.In([]models.OrderStatus{models.OrderCancelled, models.OrderReturned})).
		Scan(ctx, &revenue)
	if err != nil {
		return nil, err
	}

	return &models.OrderStatistics{
		TotalOrders:           total,
		PendingOrders:         counts[models.OrderPending],
		ProcessingOrders:      counts[models.OrderProcessing],
		ShippedOrders:         counts[models.OrderShipped],
		DeliveredOrders:       counts[models.OrderDelivered],
		CancelRequestedOrders: counts[models.OrderCancelRequested],
		CancelledOrders:       counts[models.OrderCancelled],
		ReturnRequestedOrders: counts[models.OrderReturnRequested],
		ReturnedOrders:        counts[models.OrderReturned],
		FailedOrders:          counts[models.OrderFailed],
		TotalRevenue:          revenue,
	}, nil
}
