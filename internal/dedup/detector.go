// Package dedup detects resubmission of an already-committed payment
// receipt.
package dedup

import (
	"context"
	"time"

	"github.com/condominio/pagobot/internal/models"
	"github.com/condominio/pagobot/pkg/retry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// amounts within one cent are considered equal, tolerating float noise
// introduced upstream by extraction
var amountEpsilon = decimal.NewFromFloat(0.01)

// Match describes a previously committed voucher that duplicates the
// in-flight submission
type Match struct {
	VoucherID        int64
	ConfirmationCode string
}

// VoucherFinder narrows prior vouchers to a payment-time window
type VoucherFinder interface {
	FindByPaidAtRange(from, to time.Time) ([]models.Voucher, error)
}

// LedgerResolver follows voucher -> ledger record
type LedgerResolver interface {
	GetByVoucherID(voucherID int64) (*models.LedgerRecord, error)
}

// LinkResolver follows ledger record -> house association
type LinkResolver interface {
	GetByLedgerRecordID(recordID int64) (*models.HouseLedgerLink, error)
}

// HouseResolver follows house association -> house
type HouseResolver interface {
	GetByID(id int64) (*models.House, error)
}

// Detector checks whether a payment was already committed. Matching is by
// payment timestamp truncated to the second, amount within epsilon, and the
// house the prior voucher resolved to.
type Detector struct {
	vouchers VoucherFinder
	ledgers  LedgerResolver
	links    LinkResolver
	houses   HouseResolver
	logger   *zap.Logger
}

// NewDetector creates a duplicate detector
func NewDetector(
	vouchers VoucherFinder,
	ledgers LedgerResolver,
	links LinkResolver,
	houses HouseResolver,
	logger *zap.Logger,
) *Detector {
	return &Detector{
		vouchers: vouchers,
		ledgers:  ledgers,
		links:    links,
		houses:   houses,
		logger:   logger,
	}
}

// Check reports whether a committed voucher already matches the given
// payment. It fails open: any internal error is logged and reported as
// "not a duplicate" so a legitimate submission is never blocked by a
// detector fault.
func (d *Detector) Check(ctx context.Context, paidAt time.Time, amount decimal.Decimal, houseNumber int) *Match {
	second := paidAt.Truncate(time.Second)

	var candidates []models.Voucher
	err := retry.Do(ctx, retry.DefaultOptions(), func() error {
		var findErr error
		candidates, findErr = d.vouchers.FindByPaidAtRange(second, second.Add(time.Second))
		return findErr
	})
	if err != nil {
		d.logger.Error("Duplicate check failed, allowing submission",
			zap.Time("paid_at", paidAt),
			zap.Error(err))
		return nil
	}

	for _, candidate := range candidates {
		if !candidate.PaidAt.Truncate(time.Second).Equal(second) {
			continue
		}
		if candidate.Amount.Sub(amount).Abs().GreaterThan(amountEpsilon) {
			continue
		}

		resolved, ok := d.resolveHouse(candidate)
		if !ok {
			// orphaned linkage, skip the candidate rather than fail
			continue
		}
		if resolved == houseNumber {
			d.logger.Info("Duplicate submission detected",
				zap.Int64("voucher_id", candidate.ID),
				zap.String("confirmation_code", candidate.ConfirmationCode),
				zap.Int("house_number", houseNumber))
			return &Match{
				VoucherID:        candidate.ID,
				ConfirmationCode: candidate.ConfirmationCode,
			}
		}
	}

	return nil
}

// resolveHouse walks voucher -> ledger record -> association -> house
func (d *Detector) resolveHouse(voucher models.Voucher) (int, bool) {
	record, err := d.ledgers.GetByVoucherID(voucher.ID)
	if err != nil || record == nil {
		d.logWalkGap("ledger record", voucher.ID, err)
		return 0, false
	}

	link, err := d.links.GetByLedgerRecordID(record.ID)
	if err != nil || link == nil {
		d.logWalkGap("house link", voucher.ID, err)
		return 0, false
	}

	house, err := d.houses.GetByID(link.HouseID)
	if err != nil || house == nil {
		d.logWalkGap("house", voucher.ID, err)
		return 0, false
	}

	return house.Number, true
}

func (d *Detector) logWalkGap(stage string, voucherID int64, err error) {
	d.logger.Warn("Skipping duplicate candidate with unresolvable linkage",
		zap.String("stage", stage),
		zap.Int64("voucher_id", voucherID),
		zap.Error(err))
}
