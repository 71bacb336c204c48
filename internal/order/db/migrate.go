package db

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"bookstore-orders/internal/models"
)

// Migrate creates the core tables if they do not exist. The golang-migrate
// runner handles versioned schema changes; this covers fresh dev databases.
func Migrate(db *bun.DB) {
	ctx := context.Background()

	tables := []interface{}{
		(*models.User)(nil),
		(*models.Address)(nil),
		(*models.Book)(nil),
		(*models.Promotion)(nil),
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
	}

	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("create table failed: %v", err)
		}
	}

	log.Println("core tables ready")
}
