package models

import "github.com/shopspring/decimal"

// DailyReport summarises completed orders of a single day.
type DailyReport struct {
	Date        string          `json:"date"` // YYYY-MM-DD
	TotalSales  decimal.Decimal `json:"total_sales"`
	TotalOrders int             `json:"total_orders"`
}

// DailySales is one row of the monthly breakdown.
type DailySales struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// MonthlyReport summarises completed orders of a calendar month.
type MonthlyReport struct {
	Month      string          `json:"month"` // e.g. "October 2026"
	Year       int             `json:"year"`
	MonthIndex int             `json:"month_number"`
	TotalSales decimal.Decimal `json:"total_sales"`
	DailySales []DailySales    `json:"daily_sales"`
}

// DashboardSummary holds key metrics for the dashboard.
type DashboardSummary struct {
	TotalOrders     int             `json:"total_orders"`
	PendingOrders   int             `json:"pending_orders"`
	CompletedOrders int             `json:"completed_orders"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalUsers      int             `json:"total_users"`
	LowStockCount   int             `json:"low_stock_count"`
	TodaySales      decimal.Decimal `json:"today_sales"`
}
