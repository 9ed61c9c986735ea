package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cafeteria_backend/internal/models"
)

// RemovedItemLabel stands in for line items whose menu item was deleted.
const RemovedItemLabel = "(removed item)"

// VoucherService renders printable order vouchers.
type VoucherService interface {
	RenderVoucher(ctx context.Context, orderID int64) (*ExportFile, error)
}

type voucherService struct {
	orders        OrderService
	cafeName      string
	currencyLabel string
	location      *time.Location
}

// NewVoucherService creates a new instance of VoucherService.
func NewVoucherService(orders OrderService, cafeName, currencyLabel string, location *time.Location) VoucherService {
	if location == nil {
		location = time.UTC
	}
	return &voucherService{orders: orders, cafeName: cafeName, currencyLabel: currencyLabel, location: location}
}

func (s *voucherService) RenderVoucher(ctx context.Context, orderID int64) (*ExportFile, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	data, err := s.render(order)
	if err != nil {
		return nil, fmt.Errorf("failed to render voucher for order %d: %w", orderID, err)
	}
	return &ExportFile{
		Filename:    "voucher_" + order.VoucherCode + ".pdf",
		ContentType: contentTypePDF,
		Data:        data,
	}, nil
}

func (s *voucherService) render(order *models.Order) ([]byte, error) {
	doc := newPDF("Voucher - " + order.VoucherCode)

	doc.SetTextColor(25, 135, 84)
	doc.heading(s.cafeName, 18)
	doc.SetTextColor(0, 0, 0)
	doc.divider()

	doc.line("Customer:", order.CustomerName)
	doc.line("Payment Method:", order.PaymentMethod)
	doc.line("Voucher Code:", order.VoucherCode)
	doc.line("Date:", order.CreatedAt.In(s.location).Format("2006-01-02 15:04"))
	doc.Ln(4)

	widths := []float64{80, 20, 40, 40}
	doc.table(widths, []string{
		"Name", "Qty", "Price (" + s.currencyLabel + ")", "Subtotal (" + s.currencyLabel + ")",
	}, voucherRows(order.Items))

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(widths[0]+widths[1]+widths[2], 8, "Total:", "1", 0, "R", false, 0, "")
	doc.CellFormat(widths[3], 8, doc.tr(formatAmount(order.TotalPrice)+" "+s.currencyLabel), "1", 1, "C", false, 0, "")

	doc.Ln(12)
	doc.SetFont("Helvetica", "I", 10)
	doc.SetTextColor(85, 85, 85)
	doc.CellFormat(0, 6, doc.tr("Thank you for dining with "+s.cafeName), "", 1, "C", false, 0, "")

	return doc.bytes()
}

// voucherRows builds the item table. Deleted menu items keep the name
// captured when the order was placed.
func voucherRows(items []models.OrderItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		name := item.ItemName
		if item.MenuItem != nil {
			name = item.MenuItem.Name
		}
		if name == "" {
			name = RemovedItemLabel
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(item.Quantity),
			formatAmount(item.Price),
			formatAmount(item.Subtotal()),
		})
	}
	return rows
}
