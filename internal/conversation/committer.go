package conversation

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/condominio/pagobot/internal/fields"
	"github.com/condominio/pagobot/internal/models"
	"github.com/condominio/pagobot/internal/repository"
	"github.com/condominio/pagobot/pkg/database"
	"go.uber.org/zap"
)

const (
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeSuffixLen    = 5
	maxCodeAttempts  = 5
	uniqueCodeMarker = "vouchers.confirmation_code"
)

// ErrCodeExhausted is returned when every confirmation-code attempt
// collided with an existing voucher
var ErrCodeExhausted = errors.New("confirmation code generation exhausted retries")

// Committer persists a confirmed draft and all its linked rows inside one
// transaction. Either the voucher, its ledger record, review status and
// house association all exist afterwards, or none do.
type Committer struct {
	db       *database.DB
	vouchers *repository.VoucherRepository
	ledgers  *repository.LedgerRecordRepository
	reviews  *repository.ReviewStatusRepository
	links    *repository.HouseLedgerRepository
	tenants  *repository.TenantRepository
	houses   *repository.HouseRepository
	logger   *zap.Logger

	now     func() time.Time
	newCode func() string
}

// NewCommitter creates the atomic commit procedure
func NewCommitter(
	db *database.DB,
	vouchers *repository.VoucherRepository,
	ledgers *repository.LedgerRecordRepository,
	reviews *repository.ReviewStatusRepository,
	links *repository.HouseLedgerRepository,
	tenants *repository.TenantRepository,
	houses *repository.HouseRepository,
	logger *zap.Logger,
) *Committer {
	c := &Committer{
		db:       db,
		vouchers: vouchers,
		ledgers:  ledgers,
		reviews:  reviews,
		links:    links,
		tenants:  tenants,
		houses:   houses,
		logger:   logger,
		now:      time.Now,
	}
	c.newCode = c.generateCode
	return c
}

// WithClock overrides the committer's clock. Test hook.
func (c *Committer) WithClock(now func() time.Time) *Committer {
	c.now = now
	return c
}

// WithCodeGenerator overrides confirmation-code generation. Test hook for
// forcing collisions.
func (c *Committer) WithCodeGenerator(gen func() string) *Committer {
	c.newCode = gen
	return c
}

// Commit writes the voucher and its linked entities. Preconditions: the
// draft has a resolved house number, a validated positive amount, and the
// duplicate check came back negative.
func (c *Committer) Commit(draft models.VoucherDraft, phone, artifactPath string) (*models.Voucher, error) {
	amount, err := fields.ValidateAmount(draft.Amount)
	if err != nil {
		return nil, fmt.Errorf("draft not ready: %w", err)
	}
	if !draft.HasHouseNumber() {
		return nil, fmt.Errorf("draft not ready: house number unresolved")
	}

	paidAt, err := fields.CombineDateTime(draft.PaymentDate, draft.PaymentTime)
	if err != nil {
		return nil, fmt.Errorf("draft not ready: %w", err)
	}

	voucher := &models.Voucher{
		PaidAt:        paidAt,
		BankReference: draft.BankReference,
		Amount:        amount,
		Reviewed:      false,
		ArtifactPath:  artifactPath,
	}

	err = c.db.WithTransaction(func(tx *sql.Tx) error {
		if err := c.insertWithUniqueCode(tx, voucher); err != nil {
			return err
		}

		// defensive re-read inside the same transaction
		persisted, err := c.vouchers.GetByConfirmationCode(tx, voucher.ConfirmationCode)
		if err != nil {
			return err
		}
		if persisted == nil {
			return fmt.Errorf("voucher %s vanished after insert", voucher.ConfirmationCode)
		}

		tenant, err := c.tenants.FindOrCreate(tx, phone, "")
		if err != nil {
			return err
		}

		record := &models.LedgerRecord{VoucherID: voucher.ID}
		if err := c.ledgers.Create(tx, record); err != nil {
			return err
		}

		review := &models.ReviewStatus{
			VoucherID:   voucher.ID,
			HouseNumber: draft.HouseNumber,
			State:       models.ReviewStatePending,
		}
		if err := c.reviews.Create(tx, review); err != nil {
			return err
		}

		house, err := c.houses.FindOrCreate(tx, draft.HouseNumber, tenant.ID)
		if err != nil {
			return err
		}

		link := &models.HouseLedgerLink{
			HouseID:        house.ID,
			LedgerRecordID: record.ID,
		}
		return c.links.Create(tx, link)
	})
	if err != nil {
		c.logger.Error("Voucher commit failed, transaction rolled back",
			zap.String("phone", repository.NormalizePhone(phone)),
			zap.Int("house_number", draft.HouseNumber),
			zap.Error(err))
		return nil, err
	}

	c.logger.Info("Voucher committed",
		zap.Int64("voucher_id", voucher.ID),
		zap.String("confirmation_code", voucher.ConfirmationCode),
		zap.Int("house_number", draft.HouseNumber))
	return voucher, nil
}

// insertWithUniqueCode inserts the voucher, regenerating the confirmation
// code on a uniqueness conflict up to maxCodeAttempts times
func (c *Committer) insertWithUniqueCode(tx *sql.Tx, voucher *models.Voucher) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		voucher.ConfirmationCode = c.newCode()

		err := c.vouchers.Create(tx, voucher)
		if err == nil {
			return nil
		}
		if !isCodeCollision(err) {
			return err
		}

		c.logger.Warn("Confirmation code collision, regenerating",
			zap.String("code", voucher.ConfirmationCode),
			zap.Int("attempt", attempt))
	}
	return ErrCodeExhausted
}

// generateCode builds YYYYMM-XXXXX: current year and zero-padded month,
// then five random uppercase alphanumerics
func (c *Committer) generateCode() string {
	suffix := make([]byte, codeSuffixLen)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			// crypto/rand failure is unrecoverable; surface as a panic
			// caught by the transaction wrapper
			panic(fmt.Sprintf("random source failed: %v", err))
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s", c.now().Format("200601"), string(suffix))
}

func isCodeCollision(err error) bool {
	return err != nil && strings.Contains(err.Error(), uniqueCodeMarker)
}
