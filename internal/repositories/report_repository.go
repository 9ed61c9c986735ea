package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cafeteria_backend/internal/models"

	"github.com/shopspring/decimal"
)

// OrderTotals are lifetime order counters used by the dashboard.
type OrderTotals struct {
	Total     int
	Pending   int
	Completed int
	Revenue   decimal.Decimal // completed orders only
}

// ReportRepository runs the read-only aggregate queries behind reports.
// Time ranges are half-open: [start, end).
type ReportRepository interface {
	SalesSummary(ctx context.Context, start, end time.Time) (decimal.Decimal, int, error)
	DailySales(ctx context.Context, start, end time.Time, timeZone string) ([]models.DailySales, error)
	OrderTotals(ctx context.Context) (*OrderTotals, error)
}

type reportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *sql.DB) ReportRepository {
	return &reportRepository{db: db}
}

// SalesSummary returns the revenue and number of completed orders created in the range.
func (r *reportRepository) SalesSummary(ctx context.Context, start, end time.Time) (decimal.Decimal, int, error) {
	query := `SELECT COALESCE(SUM(total_price), 0), COUNT(*)
	          FROM orders
	          WHERE status = $1 AND created_at >= $2 AND created_at < $3`
	var total decimal.Decimal
	var count int
	err := r.db.QueryRowContext(ctx, query, models.OrderStatusCompleted, start, end).Scan(&total, &count)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("%w: summarising sales: %v", ErrDatabaseError, err)
	}
	return total, count, nil
}

// DailySales groups completed revenue by calendar day in timeZone, ascending.
// Days without completed orders are not returned.
func (r *reportRepository) DailySales(ctx context.Context, start, end time.Time, timeZone string) ([]models.DailySales, error) {
	query := `SELECT TO_CHAR(created_at AT TIME ZONE $1, 'YYYY-MM-DD') AS day, SUM(total_price)
	          FROM orders
	          WHERE status = $2 AND created_at >= $3 AND created_at < $4
	          GROUP BY day
	          ORDER BY day`
	rows, err := r.db.QueryContext(ctx, query, timeZone, models.OrderStatusCompleted, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: querying daily sales: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	sales := []models.DailySales{}
	for rows.Next() {
		var day models.DailySales
		if err := rows.Scan(&day.Date, &day.Total); err != nil {
			return nil, fmt.Errorf("%w: scanning daily sales: %v", ErrDatabaseError, err)
		}
		sales = append(sales, day)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating daily sales: %v", ErrDatabaseError, err)
	}
	return sales, nil
}

func (r *reportRepository) OrderTotals(ctx context.Context) (*OrderTotals, error) {
	query := `SELECT COUNT(*),
	                 COUNT(*) FILTER (WHERE status = $1),
	                 COUNT(*) FILTER (WHERE status = $2),
	                 COALESCE(SUM(total_price) FILTER (WHERE status = $2), 0)
	          FROM orders`
	totals := &OrderTotals{}
	err := r.db.QueryRowContext(ctx, query, models.OrderStatusPending, models.OrderStatusCompleted).
		Scan(&totals.Total, &totals.Pending, &totals.Completed, &totals.Revenue)
	if err != nil {
		return nil, fmt.Errorf("%w: counting orders: %v", ErrDatabaseError, err)
	}
	return totals, nil
}
