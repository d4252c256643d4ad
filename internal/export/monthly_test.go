package export

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/condominio/pagobot/internal/models"
)

type fakeVoucherSource struct {
	vouchers []models.Voucher
	err      error
}

func (f *fakeVoucherSource) FindByMonth(int, time.Month) ([]models.Voucher, error) {
	return f.vouchers, f.err
}

type fakeReviewSource struct {
	byVoucher map[int64]*models.ReviewStatus
}

func (f *fakeReviewSource) GetByVoucherID(id int64) (*models.ReviewStatus, error) {
	return f.byVoucher[id], nil
}

func TestMonthlyExporterGenerate(t *testing.T) {
	vouchers := &fakeVoucherSource{vouchers: []models.Voucher{
		{
			ID:               1,
			ConfirmationCode: "202501-A7K2M",
			PaidAt:           time.Date(2025, 1, 10, 10, 30, 0, 0, time.UTC),
			Amount:           decimal.RequireFromString("1500.12"),
			BankReference:    "REF-9981",
		},
		{
			ID:               2,
			ConfirmationCode: "202501-B3XQ9",
			PaidAt:           time.Date(2025, 1, 12, 9, 0, 0, 0, time.UTC),
			Amount:           decimal.RequireFromString("900.03"),
		},
	}}
	reviews := &fakeReviewSource{byVoucher: map[int64]*models.ReviewStatus{
		1: {VoucherID: 1, HouseNumber: 12, State: models.ReviewStatePending},
		2: {VoucherID: 2, HouseNumber: 3, State: models.ReviewStateConfirmed},
	}}

	exporter := NewMonthlyExporter(vouchers, reviews, t.TempDir(), zap.NewNop())

	path, err := exporter.Generate(2025, time.January)
	require.NoError(t, err)
	assert.Contains(t, path, "payments-2025-01.xlsx")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	get := func(cell string) string {
		value, err := f.GetCellValue("Payments", cell)
		require.NoError(t, err)
		return value
	}

	assert.Equal(t, "Confirmation Code", get("A1"))
	assert.Equal(t, "202501-A7K2M", get("A2"))
	assert.Equal(t, "12", get("B2"))
	assert.Equal(t, "1500.12", get("D2"))
	assert.Equal(t, "pending", get("F2"))
	assert.Equal(t, "202501-B3XQ9", get("A3"))
	assert.Equal(t, "confirmed", get("F3"))

	// grand total below the rows
	assert.Equal(t, "Total", get("C5"))
	assert.Equal(t, "2400.15", get("D5"))
}

func TestMonthlyExporterEmptyMonth(t *testing.T) {
	exporter := NewMonthlyExporter(
		&fakeVoucherSource{},
		&fakeReviewSource{byVoucher: map[int64]*models.ReviewStatus{}},
		t.TempDir(), zap.NewNop())

	path, err := exporter.Generate(2025, time.February)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue("Payments", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Confirmation Code", value)

	total, err := f.GetCellValue("Payments", "D3")
	require.NoError(t, err)
	assert.Equal(t, "0.00", total)
}
