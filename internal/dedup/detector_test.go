package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/condominio/pagobot/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	vouchers []models.Voucher
	ledgers  map[int64]*models.LedgerRecord
	links    map[int64]*models.HouseLedgerLink
	houses   map[int64]*models.House

	findErr error
}

func (f *fakeStore) FindByPaidAtRange(from, to time.Time) ([]models.Voucher, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Voucher
	for _, v := range f.vouchers {
		if !v.PaidAt.Before(from) && v.PaidAt.Before(to) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) GetByVoucherID(voucherID int64) (*models.LedgerRecord, error) {
	return f.ledgers[voucherID], nil
}

func (f *fakeStore) GetByLedgerRecordID(recordID int64) (*models.HouseLedgerLink, error) {
	return f.links[recordID], nil
}

func (f *fakeStore) GetByID(id int64) (*models.House, error) {
	return f.houses[id], nil
}

func committedVoucher(paidAt time.Time) *fakeStore {
	return &fakeStore{
		vouchers: []models.Voucher{{
			ID:               1,
			PaidAt:           paidAt,
			Amount:           decimal.RequireFromString("500.15"),
			ConfirmationCode: "202501-AB3X9",
		}},
		ledgers: map[int64]*models.LedgerRecord{1: {ID: 10, VoucherID: 1}},
		links:   map[int64]*models.HouseLedgerLink{10: {ID: 100, HouseID: 7, LedgerRecordID: 10}},
		houses:  map[int64]*models.House{7: {ID: 7, Number: 15}},
	}
}

func newDetector(f *fakeStore) *Detector {
	return NewDetector(f, f, f, f, zap.NewNop())
}

func TestDetector_Check(t *testing.T) {
	paidAt := time.Date(2025, 1, 10, 10, 30, 0, 0, time.UTC)
	amount := decimal.RequireFromString("500.15")

	t.Run("flags matching timestamp, amount and house", func(t *testing.T) {
		d := newDetector(committedVoucher(paidAt))

		match := d.Check(context.Background(), paidAt, amount, 15)
		require.NotNil(t, match)
		assert.Equal(t, "202501-AB3X9", match.ConfirmationCode)
	})

	t.Run("ignores sub-second differences", func(t *testing.T) {
		d := newDetector(committedVoucher(paidAt.Add(400 * time.Millisecond)))

		match := d.Check(context.Background(), paidAt, amount, 15)
		assert.NotNil(t, match)
	})

	t.Run("tolerates one-cent amount drift", func(t *testing.T) {
		d := newDetector(committedVoucher(paidAt))

		match := d.Check(context.Background(), paidAt, decimal.RequireFromString("500.16"), 15)
		assert.NotNil(t, match)
	})

	t.Run("different house is not a duplicate", func(t *testing.T) {
		d := newDetector(committedVoucher(paidAt))

		assert.Nil(t, d.Check(context.Background(), paidAt, amount, 22))
	})

	t.Run("different second is not a duplicate", func(t *testing.T) {
		d := newDetector(committedVoucher(paidAt))

		assert.Nil(t, d.Check(context.Background(), paidAt.Add(time.Second), amount, 15))
	})

	t.Run("amount past epsilon is not a duplicate", func(t *testing.T) {
		d := newDetector(committedVoucher(paidAt))

		assert.Nil(t, d.Check(context.Background(), paidAt, decimal.RequireFromString("500.17"), 15))
	})

	t.Run("orphaned linkage skips the candidate", func(t *testing.T) {
		f := committedVoucher(paidAt)
		f.links = map[int64]*models.HouseLedgerLink{}
		d := newDetector(f)

		assert.Nil(t, d.Check(context.Background(), paidAt, amount, 15))
	})

	t.Run("storage error fails open", func(t *testing.T) {
		f := committedVoucher(paidAt)
		f.findErr = errors.New("disk exploded")
		d := newDetector(f)

		assert.Nil(t, d.Check(context.Background(), paidAt, amount, 15))
	})
}
