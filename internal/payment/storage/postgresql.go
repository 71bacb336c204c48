package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"bookstore-orders/internal/config"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB wraps an existing database connection.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment tables: %w", err)
	}

	log.Info("DATABASE", "Payment storage initialized with existing connection")
	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established and tables initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "postgresql", "Creating payments table if not exists")

	paymentsQuery := `
    CREATE TABLE IF NOT EXISTS payments (
        payment_id VARCHAR(36) PRIMARY KEY,
        order_id VARCHAR(36) NOT NULL,
        status VARCHAR(50) NOT NULL,
        amount DECIMAL(10,2) NOT NULL,
        url VARCHAR(500),
        created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        updated_date TIMESTAMP
    );
    `

	if _, err := s.db.Exec(paymentsQuery); err != nil {
		return fmt.Errorf("failed to create payments table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments(order_id);",
		"CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);",
		"CREATE INDEX IF NOT EXISTS idx_payments_created_date ON payments(created_date);",
	}

	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "postgresql", "Payment tables and indexes ready")
	return nil
}

// SavePayment inserts one payment-link attempt.
func (s *PostgreSQLStore) SavePayment(payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "postgresql", fmt.Sprintf("Saving payment %s", payment.PaymentID))

	query := `
    INSERT INTO payments (
        payment_id, order_id, status, amount, url, created_date
    ) VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err := s.db.Exec(query,
		payment.PaymentID, payment.OrderID, payment.Status, payment.Amount, payment.URL, payment.CreatedDate,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment %s: %s", payment.PaymentID, err.Error()))
		return fmt.Errorf("failed to save payment: %w", err)
	}

	return nil
}

// GetPayment retrieves a payment by ID.
func (s *PostgreSQLStore) GetPayment(id string) (*models.Payment, error) {
	query := `
    SELECT payment_id, order_id, status, amount, url, created_date
    FROM payments WHERE payment_id = $1
    `

	payment := &models.Payment{}
	err := s.db.QueryRow(query, id).Scan(
		&payment.PaymentID, &payment.OrderID, &payment.Status, &payment.Amount, &payment.URL, &payment.CreatedDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("payment not found")
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// UpdatePayment rewrites the mutable columns of a payment row.
func (s *PostgreSQLStore) UpdatePayment(payment *models.Payment) error {
	s.log.LogDatabase("UPDATE", "postgresql", fmt.Sprintf("Updating payment %s", payment.PaymentID))

	query := `
    UPDATE payments SET
        order_id = $1, status = $2, amount = $3, url = $4, updated_date = $5
    WHERE payment_id = $6
    `

	_, err := s.db.Exec(query,
		payment.OrderID, payment.Status, payment.Amount, payment.URL, time.Now(), payment.PaymentID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update payment %s: %s", payment.PaymentID, err.Error()))
		return fmt.Errorf("failed to update payment: %w", err)
	}

	return nil
}

// UpdatePaymentStatusByOrder syncs the latest payment row for an order after
// a webhook outcome.
func (s *PostgreSQLStore) UpdatePaymentStatusByOrder(orderID string, status models.PaymentRecordStatus) error {
	s.log.LogDatabase("UPDATE", "postgresql", fmt.Sprintf("Updating payment status for order %s to %s", orderID, status))

	query := `
    UPDATE payments SET status = $1, updated_date = $2
    WHERE payment_id = (
        SELECT payment_id FROM payments
        WHERE order_id = $3
        ORDER BY created_date DESC
        LIMIT 1
    )
    `

	result, err := s.db.Exec(query, status, time.Now(), orderID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("no payment record found for order %s", orderID)
	}

	return nil
}

// ListPayments retrieves payments for a specific order, newest first.
func (s *PostgreSQLStore) ListPayments(orderID string, limit, offset int) ([]*models.Payment, error) {
	query := `
    SELECT payment_id, order_id, status, amount, url, created_date
    FROM payments
    WHERE order_id = $1
    ORDER BY created_date DESC
    LIMIT $2 OFFSET $3
    `

	rows, err := s.db.Query(query, orderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		err := rows.Scan(
			&payment.PaymentID, &payment.OrderID, &payment.Status, &payment.Amount, &payment.URL, &payment.CreatedDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return payments, nil
}

// GetPaymentByOrderID retrieves the newest payment row for an order.
func (s *PostgreSQLStore) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	query := `
    SELECT payment_id, order_id, status, amount, url, created_date
    FROM payments WHERE order_id = $1
    ORDER BY created_date DESC
    LIMIT 1
    `

	payment := &models.Payment{}
	err := s.db.QueryRow(query, orderID).Scan(
		&payment.PaymentID, &payment.OrderID, &payment.Status, &payment.Amount, &payment.URL, &payment.CreatedDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("payment not found")
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

func (s *PostgreSQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "postgresql", "Closing PostgreSQL connection")
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}
