// Package export produces the monthly payment report handed to the
// administration for reconciliation.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/condominio/pagobot/internal/models"
)

// VoucherSource lists the committed vouchers of one calendar month
type VoucherSource interface {
	FindByMonth(year int, month time.Month) ([]models.Voucher, error)
}

// ReviewSource resolves the review status a voucher was committed with
type ReviewSource interface {
	GetByVoucherID(voucherID int64) (*models.ReviewStatus, error)
}

// MonthlyExporter writes one spreadsheet per month with every committed
// payment, its attributed house and its review state
type MonthlyExporter struct {
	vouchers VoucherSource
	reviews  ReviewSource
	outDir   string
	logger   *zap.Logger
}

// NewMonthlyExporter creates a monthly report exporter
func NewMonthlyExporter(vouchers VoucherSource, reviews ReviewSource, outDir string, logger *zap.Logger) *MonthlyExporter {
	return &MonthlyExporter{
		vouchers: vouchers,
		reviews:  reviews,
		outDir:   outDir,
		logger:   logger,
	}
}

var reportHeaders = []string{
	"Confirmation Code", "House", "Paid At", "Amount", "Bank Reference", "Review State",
}

// Generate writes the report for the given month and returns its path.
// A month without payments still produces a spreadsheet with headers, so
// the administration gets an explicit "nothing received" artifact.
func (e *MonthlyExporter) Generate(year int, month time.Month) (string, error) {
	vouchers, err := e.vouchers.FindByMonth(year, month)
	if err != nil {
		return "", fmt.Errorf("failed to list vouchers for %04d-%02d: %w", year, month, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Payments"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, header := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	total := decimal.Zero
	for i, v := range vouchers {
		row := i + 2

		houseNumber := 0
		state := "missing"
		review, err := e.reviews.GetByVoucherID(v.ID)
		if err != nil {
			return "", fmt.Errorf("failed to resolve review for voucher %d: %w", v.ID, err)
		}
		if review != nil {
			houseNumber = review.HouseNumber
			state = review.State
		}

		values := []interface{}{
			v.ConfirmationCode,
			houseNumber,
			v.PaidAt.Format("2006-01-02 15:04:05"),
			v.Amount.StringFixed(2),
			v.BankReference,
			state,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return "", fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return "", fmt.Errorf("failed to write voucher row: %w", err)
			}
		}

		total = total.Add(v.Amount)
	}

	totalRow := len(vouchers) + 3
	if err := f.SetCellValue(sheet, fmt.Sprintf("C%d", totalRow), "Total"); err != nil {
		return "", fmt.Errorf("failed to write total label: %w", err)
	}
	if err := f.SetCellValue(sheet, fmt.Sprintf("D%d", totalRow), total.StringFixed(2)); err != nil {
		return "", fmt.Errorf("failed to write total: %w", err)
	}

	if err := f.SetColWidth(sheet, "A", "F", 22); err != nil {
		return "", fmt.Errorf("failed to size columns: %w", err)
	}

	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(e.outDir, fmt.Sprintf("payments-%04d-%02d.xlsx", year, int(month)))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	e.logger.Info("Monthly report generated",
		zap.Int("year", year),
		zap.Int("month", int(month)),
		zap.Int("vouchers", len(vouchers)),
		zap.String("total", total.StringFixed(2)),
		zap.String("path", path))
	return path, nil
}
