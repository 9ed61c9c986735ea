package handlers

import (
	"net/http"
	"strings"

	"cafeteria_backend/internal/services"
	"cafeteria_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// dailyReportQuery is bound from ?date=YYYY-MM-DD; empty means today.
type dailyReportQuery struct {
	Date   string `form:"date" binding:"omitempty,datetime=2006-01-02"`
	Format string `form:"format"`
}

// monthlyReportQuery is bound from ?month=&year=; zero means current.
type monthlyReportQuery struct {
	Month  int    `form:"month" binding:"omitempty,min=1,max=12"`
	Year   int    `form:"year" binding:"omitempty,min=1970,max=9999"`
	Format string `form:"format"`
}

// ReportHandler serves sales reports, their exports and the dashboard.
type ReportHandler struct {
	reportService services.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(rs services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: rs}
}

func exportFormat(c *gin.Context, raw string, allowed ...string) (string, bool) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "" {
		format = allowed[0]
	}
	for _, a := range allowed {
		if format == a {
			return format, true
		}
	}
	utils.RespondValidationFailed(c, "Unsupported export format", map[string]string{
		"format": "must be one of: " + strings.Join(allowed, ", "),
	})
	return "", false
}

func (h *ReportHandler) GetDailyReport(c *gin.Context) {
	var q dailyReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondBindingError(c, err)
		return
	}
	report, err := h.reportService.DailyReport(c.Request.Context(), q.Date)
	if err != nil {
		respondServiceError(c, err, "GetDailyReport")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) GetMonthlyReport(c *gin.Context) {
	var q monthlyReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondBindingError(c, err)
		return
	}
	report, err := h.reportService.MonthlyReport(c.Request.Context(), q.Month, q.Year)
	if err != nil {
		respondServiceError(c, err, "GetMonthlyReport")
		return
	}
	c.JSON(http.StatusOK, report)
}

// ExportDailyReport downloads the daily report; only PDF is offered.
func (h *ReportHandler) ExportDailyReport(c *gin.Context) {
	var q dailyReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondBindingError(c, err)
		return
	}
	if _, ok := exportFormat(c, q.Format, "pdf"); !ok {
		return
	}
	file, err := h.reportService.ExportDailyPDF(c.Request.Context(), q.Date)
	if err != nil {
		respondServiceError(c, err, "ExportDailyReport")
		return
	}
	sendFile(c, file, false)
}

// ExportMonthlyReport downloads the monthly report as CSV (default) or PDF.
func (h *ReportHandler) ExportMonthlyReport(c *gin.Context) {
	var q monthlyReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondBindingError(c, err)
		return
	}
	format, ok := exportFormat(c, q.Format, "csv", "pdf")
	if !ok {
		return
	}

	var (
		file *services.ExportFile
		err  error
	)
	if format == "pdf" {
		file, err = h.reportService.ExportMonthlyPDF(c.Request.Context(), q.Month, q.Year)
	} else {
		file, err = h.reportService.ExportMonthlyCSV(c.Request.Context(), q.Month, q.Year)
	}
	if err != nil {
		respondServiceError(c, err, "ExportMonthlyReport")
		return
	}
	sendFile(c, file, false)
}

// GetDashboardSummary returns headline counters for the dashboard.
func (h *ReportHandler) GetDashboardSummary(c *gin.Context) {
	summary, err := h.reportService.DashboardSummary(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "GetDashboardSummary")
		return
	}
	c.JSON(http.StatusOK, summary)
}
