package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"bookstore-orders/internal/apperr"
	catalogdb "bookstore-orders/internal/catalog/db"
	"bookstore-orders/internal/models"
	"bookstore-orders/internal/order/db"
)

func setupTestDB(t *testing.T) (*db.DB, *catalogdb.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// Every sqlite :memory: connection is its own database; pin the pool to
	// one connection so all transactions see the same data.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	db.Migrate(bunDB)

	catalog := &catalogdb.DB{Bun: bunDB}
	return &db.DB{Bun: bunDB, Catalog: catalog}, catalog, bunDB
}

func seedBook(t *testing.T, catalog *catalogdb.DB, stock int, price float64) *models.Book {
	book := &models.Book{
		BookID:        uuid.New().String(),
		Title:         "The Go Programming Language",
		Author:        "Donovan & Kernighan",
		Price:         price,
		StockQuantity: stock,
		CreatedAt:     time.Now(),
	}
	if err := catalog.CreateBook(context.Background(), book); err != nil {
		t.Fatalf("Failed to seed book: %v", err)
	}
	return book
}

func newOrder(userID string, status models.OrderStatus, total float64) models.Order {
	now := time.Now()
	return models.Order{
		OrderID:       uuid.New().String(),
		UserID:        userID,
		AddressID:     uuid.New().String(),
		Status:        status,
		PaymentMethod: models.PaymentMethodCOD,
		PaymentStatus: models.PaymentUnpaid,
		Subtotal:      total,
		TotalAmount:   total,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func lineItem(orderID string, book *models.Book, qty int) models.OrderItem {
	return models.OrderItem{
		OrderID:   orderID,
		BookID:    book.BookID,
		BookTitle: book.Title,
		Quantity:  qty,
		UnitPrice: book.Price,
		LineTotal: book.Price * float64(qty),
	}
}

func TestCreateOrderWithItems(t *testing.T) {
	orderDB, catalog, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	book := seedBook(t, catalog, 5, 30.0)

	order := newOrder("user-1", models.OrderPending, 60.0)
	err := orderDB.CreateOrderWithItems(ctx, order, []models.OrderItem{lineItem(order.OrderID, book, 2)})
	assert.NoError(t, err)

	got, err := orderDB.GetOrderByID(ctx, order.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)

	items, err := orderDB.GetItemsByOrder(ctx, order.OrderID)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	// The pending order reserves 2 of 5.
	availability, err := catalog.AvailableQuantity(ctx, book.BookID)
	assert.NoError(t, err)
	assert.Equal(t, 5, availability.StockQuantity)
	assert.Equal(t, 2, availability.ReservedQuantity)
	assert.Equal(t, 3, availability.AvailableQuantity)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	orderDB, catalog, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	book := seedBook(t, catalog, 3, 25.0)

	// First order reserves 2 of 3.
	first := newOrder("user-1", models.OrderPending, 50.0)
	err := orderDB.CreateOrderWithItems(ctx, first, []models.OrderItem{lineItem(first.OrderID, book, 2)})
	assert.NoError(t, err)

	// Second order wants 2 but only 1 remains available.
	second := newOrder("user-2", models.OrderPending, 50.0)
	err = orderDB.CreateOrderWithItems(ctx, second, []models.OrderItem{lineItem(second.OrderID, book, 2)})
	assert.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(err))

	// The failed checkout wrote nothing.
	_, err = orderDB.GetOrderByID(ctx, second.OrderID)
	assert.Equal(t, apperr.CodeOrderNotFound, apperr.CodeOf(err))

	// Cancelled orders release their reservation.
	first.Status = models.OrderCancelled
	first.UpdatedAt = time.Now()
	assert.NoError(t, orderDB.UpdateOrder(ctx, first))

	err = orderDB.CreateOrderWithItems(ctx, second, []models.OrderItem{lineItem(second.OrderID, book, 2)})
	assert.NoError(t, err)
}

func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	orderDB, catalog, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	book := seedBook(t, catalog, 1, 15.0)

	// All checkouts race for the single remaining unit; the availability
	// check inside the transaction must let exactly one through.
	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			order := newOrder(fmt.Sprintf("user-%d", n), models.OrderPending, 15.0)
			errs <- orderDB.CreateOrderWithItems(ctx, order, []models.OrderItem{lineItem(order.OrderID, book, 1)})
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(err))
	}
	assert.Equal(t, 1, succeeded)

	availability, err := catalog.AvailableQuantity(ctx, book.BookID)
	assert.NoError(t, err)
	assert.Equal(t, 1, availability.ReservedQuantity)
	assert.Equal(t, 0, availability.AvailableQuantity)
}

func TestMarkDeliveredSubtractsStock(t *testing.T) {
	orderDB, catalog, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	book := seedBook(t, catalog, 5, 20.0)

	order := newOrder("user-1", models.OrderShipped, 40.0)
	err := orderDB.CreateOrderWithItems(ctx, order, []models.OrderItem{lineItem(order.OrderID, book, 2)})
	assert.NoError(t, err)

	assert.NoError(t, orderDB.MarkDelivered(ctx, order.OrderID))

	got, err := orderDB.GetOrderByID(ctx, order.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, got.Status)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)

	// Physical stock drops; delivered orders no longer reserve.
	availability, err := catalog.AvailableQuantity(ctx, book.BookID)
	assert.NoError(t, err)
	assert.Equal(t, 3, availability.StockQuantity)
	assert.Equal(t, 0, availability.ReservedQuantity)
	assert.Equal(t, 3, availability.AvailableQuantity)
}

func TestMarkReturnRequestedRestoresStockAfterDelivery(t *testing.T) {
	orderDB, catalog, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	book := seedBook(t, catalog, 5, 20.0)

	order := newOrder("user-1", models.OrderShipped, 40.0)
	err := orderDB.CreateOrderWithItems(ctx, order, []models.OrderItem{lineItem(order.OrderID, book, 2)})
	assert.NoError(t, err)

	assert.NoError(t, orderDB.MarkDelivered(ctx, order.OrderID))
	assert.NoError(t, orderDB.MarkReturnRequested(ctx, order.OrderID, true))

	got, err := orderDB.GetOrderByID(ctx, order.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderReturnRequested, got.Status)

	availability, err := catalog.AvailableQuantity(ctx, book.BookID)
	assert.NoError(t, err)
	assert.Equal(t, 5, availability.StockQuantity)
}

func TestMarkReturnRequestedBeforeDeliveryKeepsStock(t *testing.T) {
	orderDB, catalog, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	book := seedBook(t, catalog, 5, 20.0)

	// Shipped but not delivered: nothing was subtracted yet, so a return
	// request must not add stock.
	order := newOrder("user-1", models.OrderShipped, 40.0)
	err := orderDB.CreateOrderWithItems(ctx, order, []models.OrderItem{lineItem(order.OrderID, book, 2)})
	assert.NoError(t, err)

	assert.NoError(t, orderDB.MarkReturnRequested(ctx, order.OrderID, false))

	availability, err := catalog.AvailableQuantity(ctx, book.BookID)
	assert.NoError(t, err)
	assert.Equal(t, 5, availability.StockQuantity)
	assert.Equal(t, 0, availability.ReservedQuantity)
}

func TestListOrdersAndStatistics(t *testing.T) {
	orderDB, catalog, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	book := seedBook(t, catalog, 100, 10.0)

	statuses := []models.OrderStatus{
		models.OrderPending, models.OrderDelivered, models.OrderCancelled,
	}
	for i, status := range statuses {
		order := newOrder("user-1", status, float64(10*(i+1)))
		err := orderDB.CreateOrderWithItems(ctx, order, []models.OrderItem{lineItem(order.OrderID, book, 1)})
		assert.NoError(t, err)
	}

	orders, total, err := orderDB.ListOrders(ctx, models.OrderFilter{UserID: "user-1"})
	assert.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, orders, 3)

	orders, total, err = orderDB.ListOrders(ctx, models.OrderFilter{Status: models.OrderDelivered})
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, orders, 1)

	stats, err := orderDB.Statistics(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 1, stats.PendingOrders)
	assert.Equal(t, 1, stats.DeliveredOrders)
	assert.Equal(t, 1, stats.CancelledOrders)
	// Revenue excludes the cancelled order: 10 + 20.
	assert.InDelta(t, 30.0, stats.TotalRevenue, 0.001)
}
