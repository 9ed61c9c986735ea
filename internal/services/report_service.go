package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"cafeteria_backend/internal/models"
	"cafeteria_backend/internal/repositories"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ReportService aggregates completed orders into sales reports. All
// calendar boundaries are taken in the configured location.
type ReportService interface {
	DailyReport(ctx context.Context, date string) (*models.DailyReport, error)
	MonthlyReport(ctx context.Context, month, year int) (*models.MonthlyReport, error)
	ExportDailyPDF(ctx context.Context, date string) (*ExportFile, error)
	ExportMonthlyCSV(ctx context.Context, month, year int) (*ExportFile, error)
	ExportMonthlyPDF(ctx context.Context, month, year int) (*ExportFile, error)
	DashboardSummary(ctx context.Context) (*models.DashboardSummary, error)
}

// ReportServiceOptions configures report rendering.
type ReportServiceOptions struct {
	Location          *time.Location
	LowStockThreshold int
	CafeName          string
	CurrencyLabel     string
	Now               func() time.Time
}

type reportService struct {
	reportRepo repositories.ReportRepository
	userRepo   repositories.UserRepository
	menuRepo   repositories.MenuItemRepository
	opts       ReportServiceOptions
}

// NewReportService creates a new instance of ReportService.
func NewReportService(
	rr repositories.ReportRepository,
	ur repositories.UserRepository,
	mr repositories.MenuItemRepository,
	opts ReportServiceOptions,
) ReportService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &reportService{reportRepo: rr, userRepo: ur, menuRepo: mr, opts: opts}
}

// DayRange returns [start of day, start of next day) for a YYYY-MM-DD date in loc.
func DayRange(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, NewFieldError("date", "must be a date in YYYY-MM-DD format")
	}
	return day, day.AddDate(0, 0, 1), nil
}

func (s *reportService) today() string {
	return s.opts.Now().In(s.opts.Location).Format(dateLayout)
}

// DailyReport totals the completed orders of date. An empty date means today.
func (s *reportService) DailyReport(ctx context.Context, date string) (*models.DailyReport, error) {
	if date == "" {
		date = s.today()
	}
	start, end, err := DayRange(date, s.opts.Location)
	if err != nil {
		return nil, err
	}

	total, count, err := s.reportRepo.SalesSummary(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to build daily report for %s: %w", date, err)
	}
	return &models.DailyReport{
		Date:        date,
		TotalSales:  models.Money(total),
		TotalOrders: count,
	}, nil
}

func (s *reportService) resolveMonth(month, year int) (int, int, error) {
	now := s.opts.Now().In(s.opts.Location)
	verr := &ValidationError{}
	if month == 0 {
		month = int(now.Month())
	} else if month < 1 || month > 12 {
		verr.Add("month", "must be between 1 and 12")
	}
	if year == 0 {
		year = now.Year()
	} else if year < 1970 || year > 9999 {
		verr.Add("year", "must be between 1970 and 9999")
	}
	return month, year, verr.Err()
}

// MonthlyReport breaks the completed sales of a month down by day. Zero
// month or year means the current one.
func (s *reportService) MonthlyReport(ctx context.Context, month, year int) (*models.MonthlyReport, error) {
	month, year, err := s.resolveMonth(month, year)
	if err != nil {
		return nil, err
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.opts.Location)
	end := start.AddDate(0, 1, 0)

	daily, err := s.reportRepo.DailySales(ctx, start, end, s.opts.Location.String())
	if err != nil {
		return nil, fmt.Errorf("failed to build monthly report for %d-%02d: %w", year, month, err)
	}

	total := decimal.Zero
	for i := range daily {
		daily[i].Total = models.Money(daily[i].Total)
		total = total.Add(daily[i].Total)
	}
	return &models.MonthlyReport{
		Month:      fmt.Sprintf("%s %d", time.Month(month), year),
		Year:       year,
		MonthIndex: month,
		TotalSales: models.Money(total),
		DailySales: daily,
	}, nil
}

func (s *reportService) ExportMonthlyCSV(ctx context.Context, month, year int) (*ExportFile, error) {
	report, err := s.MonthlyReport(ctx, month, year)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	records := [][]string{{"Date", "Total Sales"}}
	for _, day := range report.DailySales {
		records = append(records, []string{day.Date, formatAmount(day.Total)})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to write monthly csv: %w", err)
	}
	return &ExportFile{Filename: "Monthly_Sales_Report.csv", ContentType: contentTypeCSV, Data: buf.Bytes()}, nil
}

func (s *reportService) ExportMonthlyPDF(ctx context.Context, month, year int) (*ExportFile, error) {
	report, err := s.MonthlyReport(ctx, month, year)
	if err != nil {
		return nil, err
	}

	doc := newPDF(s.opts.CafeName + " - Monthly Sales Report")
	doc.heading(s.opts.CafeName+" - Monthly Sales Report", 16)
	doc.line("Month:", report.Month)
	doc.line("Generated on:", s.today())
	doc.Ln(4)

	rows := make([][]string, 0, len(report.DailySales)+1)
	for _, day := range report.DailySales {
		rows = append(rows, []string{day.Date, formatAmount(day.Total)})
	}
	rows = append(rows, []string{"Total", formatAmount(report.TotalSales)})
	doc.table([]float64{90, 90}, []string{"Date", "Total Sales (" + s.opts.CurrencyLabel + ")"}, rows)

	data, err := doc.bytes()
	if err != nil {
		return nil, err
	}
	return &ExportFile{Filename: "Monthly_Sales_Report.pdf", ContentType: contentTypePDF, Data: data}, nil
}

func (s *reportService) ExportDailyPDF(ctx context.Context, date string) (*ExportFile, error) {
	report, err := s.DailyReport(ctx, date)
	if err != nil {
		return nil, err
	}

	doc := newPDF(s.opts.CafeName + " - Daily Sales Report")
	doc.SetTextColor(25, 135, 84)
	doc.heading(s.opts.CafeName, 16)
	doc.SetTextColor(0, 0, 0)
	doc.divider()
	doc.heading("Sales Report", 14)
	doc.line("Date:", report.Date)
	doc.line("Generated at:", s.opts.Now().In(s.opts.Location).Format("2006-01-02 15:04"))
	doc.Ln(4)

	doc.table([]float64{90, 90}, []string{"Metric", "Value"}, [][]string{
		{"Total Sales", formatAmount(report.TotalSales) + " " + s.opts.CurrencyLabel},
		{"Total Orders", strconv.Itoa(report.TotalOrders)},
	})

	_, pageH := doc.GetPageSize()
	doc.Line(140, pageH-32, 190, pageH-32)
	doc.SetXY(140, pageH-30)
	doc.SetFont("Helvetica", "", 11)
	doc.CellFormat(50, 6, "Authorized Signature", "", 0, "C", false, 0, "")

	data, err := doc.bytes()
	if err != nil {
		return nil, err
	}
	return &ExportFile{Filename: "Todays_Sales_Report.pdf", ContentType: contentTypePDF, Data: data}, nil
}

func (s *reportService) DashboardSummary(ctx context.Context) (*models.DashboardSummary, error) {
	totals, err := s.reportRepo.OrderTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	users, err := s.userRepo.CountUsers(ctx, managedRoles)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	lowStock, err := s.menuRepo.CountLowStock(ctx, s.opts.LowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to count low stock items: %w", err)
	}
	today, err := s.DailyReport(ctx, "")
	if err != nil {
		return nil, err
	}

	return &models.DashboardSummary{
		TotalOrders:     totals.Total,
		PendingOrders:   totals.Pending,
		CompletedOrders: totals.Completed,
		TotalRevenue:    models.Money(totals.Revenue),
		TotalUsers:      users,
		LowStockCount:   lowStock,
		TodaySales:      today.TotalSales,
	}, nil
}
