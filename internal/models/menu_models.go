package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is a sellable catalog entry.
//
// IsAvailable is the manual switch staff flip from the dashboard. Whether the
// item can actually be ordered also depends on stock: see Orderable.
type MenuItem struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	StockQuantity *int            `json:"stock_quantity"` // nil: stock not tracked
	Description   *string         `json:"description"`
	Image         *string         `json:"image"`
	IsAvailable   bool            `json:"is_available"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// Derived on read.
	ImageURL    *string `json:"image_url,omitempty"`
	InStock     bool    `json:"in_stock"`
	IsOrderable bool    `json:"orderable"`
	LowStock    bool    `json:"low_stock"`
}

// TracksStock reports whether a stock level is recorded for the item.
func (m *MenuItem) TracksStock() bool {
	return m.StockQuantity != nil
}

// HasStock is true for untracked items and for tracked items above zero.
func (m *MenuItem) HasStock() bool {
	return m.StockQuantity == nil || *m.StockQuantity > 0
}

// Orderable requires both the manual flag and stock.
func (m *MenuItem) Orderable() bool {
	return m.IsAvailable && m.HasStock()
}

// Decorate fills the derived fields.
func (m *MenuItem) Decorate(lowStockThreshold int, imageURL func(string) string) {
	m.InStock = m.HasStock()
	m.IsOrderable = m.Orderable()
	m.LowStock = m.StockQuantity != nil && *m.StockQuantity <= lowStockThreshold
	m.ImageURL = nil
	if m.Image != nil && *m.Image != "" && imageURL != nil {
		u := imageURL(*m.Image)
		m.ImageURL = &u
	}
}

// MenuItemFilters narrows the menu listing.
type MenuItemFilters struct {
	Category      *string
	AvailableOnly bool
}

// Stock movement types
const (
	MovementTypeSale               = "sale"
	MovementTypeCancellationReturn = "cancellation_return"
	MovementTypeManualSet          = "manual_set"
)

// StockMovement is one entry of the per-item stock ledger.
type StockMovement struct {
	ID              int64     `json:"id"`
	MenuItemID      int64     `json:"menu_item_id"`
	OrderID         *int64    `json:"order_id,omitempty"`
	UserID          *int64    `json:"user_id,omitempty"`
	MovementType    string    `json:"movement_type"`
	QuantityChanged int       `json:"quantity_changed"`
	Reason          *string   `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
