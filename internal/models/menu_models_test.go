package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestMenuItemOrderable(t *testing.T) {
	cases := []struct {
		name      string
		available bool
		stock     *int
		want      bool
	}{
		{"untracked and available", true, nil, true},
		{"in stock", true, intPtr(3), true},
		{"sold out keeps manual flag", true, intPtr(0), false},
		{"switched off", false, intPtr(10), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := MenuItem{IsAvailable: tc.available, StockQuantity: tc.stock}
			assert.Equal(t, tc.want, item.Orderable())
		})
	}
}

func TestMenuItemDecorate(t *testing.T) {
	image := "menu_images/rice.png"
	item := MenuItem{IsAvailable: true, StockQuantity: intPtr(5), Image: &image}

	item.Decorate(5, func(p string) string { return "/storage/" + p })

	assert.True(t, item.InStock)
	assert.True(t, item.IsOrderable)
	assert.True(t, item.LowStock)
	require.NotNil(t, item.ImageURL)
	assert.Equal(t, "/storage/menu_images/rice.png", *item.ImageURL)

	untracked := MenuItem{IsAvailable: true}
	untracked.Decorate(5, nil)
	assert.False(t, untracked.LowStock)
	assert.Nil(t, untracked.ImageURL)
}

func TestMoneyMarshalsAsNumber(t *testing.T) {
	out, err := json.Marshal(DailySales{Date: "2026-10-15", Total: decimal.RequireFromString("150.50")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2026-10-15","total":150.5}`, string(out))
}

func TestOrderItemSubtotal(t *testing.T) {
	item := OrderItem{Quantity: 3, Price: decimal.RequireFromString("12.25")}
	assert.True(t, item.Subtotal().Equal(decimal.RequireFromString("36.75")))
}
