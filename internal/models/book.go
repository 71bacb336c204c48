package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Book is the catalog row. StockQuantity is the physical count; it is only
// mutated at the delivered / return-after-delivered transitions and by the
// admin inventory operation, and must never go negative.
type Book struct {
	bun.BaseModel `bun:"table:books"`

	BookID        string    `bun:"book_id,pk" json:"book_id"`
	Title         string    `bun:"title,notnull" json:"title"`
	Author        string    `bun:"author,nullzero" json:"author,omitempty"`
	Price         float64   `bun:"price,notnull" json:"price"`
	StockQuantity int       `bun:"stock_quantity,notnull" json:"stock_quantity"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

// BookAvailability is the derived view served by the availability endpoint.
type BookAvailability struct {
	BookID            string `json:"book_id"`
	StockQuantity     int    `json:"stock_quantity"`
	ReservedQuantity  int    `json:"reserved_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
}
