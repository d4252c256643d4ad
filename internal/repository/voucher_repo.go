package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/condominio/pagobot/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VoucherRepository handles voucher database operations
type VoucherRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *sql.DB, logger *zap.Logger) *VoucherRepository {
	return &VoucherRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a voucher. Returns the driver error unwrapped-enough for
// the caller to detect a confirmation-code uniqueness conflict.
func (r *VoucherRepository) Create(tx *sql.Tx, voucher *models.Voucher) error {
	query := `
		INSERT INTO vouchers (
			paid_at, bank_reference, amount, reviewed, confirmation_code, artifact_path
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		voucher.PaidAt,
		voucher.BankReference,
		voucher.Amount.String(),
		voucher.Reviewed,
		voucher.ConfirmationCode,
		voucher.ArtifactPath,
	)
	if err != nil {
		r.logger.Error("Failed to create voucher",
			zap.String("confirmation_code", voucher.ConfirmationCode),
			zap.Error(err))
		return fmt.Errorf("failed to create voucher: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	voucher.ID = id
	return nil
}

// GetByConfirmationCode retrieves a voucher by its confirmation code.
// Returns (nil, nil) when absent.
func (r *VoucherRepository) GetByConfirmationCode(tx *sql.Tx, code string) (*models.Voucher, error) {
	query := `
		SELECT id, paid_at, bank_reference, amount, reviewed, confirmation_code,
			artifact_path, created_at
		FROM vouchers
		WHERE confirmation_code = ?
	`

	voucher, err := scanVoucher(pick(r.db, tx).QueryRow(query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get voucher by confirmation code",
			zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return voucher, nil
}

// FindByPaidAtRange returns vouchers whose payment timestamp falls within
// [from, to). Used by duplicate detection to narrow candidates before the
// exact second/amount comparison.
func (r *VoucherRepository) FindByPaidAtRange(from, to time.Time) ([]models.Voucher, error) {
	query := `
		SELECT id, paid_at, bank_reference, amount, reviewed, confirmation_code,
			artifact_path, created_at
		FROM vouchers
		WHERE paid_at >= ? AND paid_at < ?
		ORDER BY id
	`

	rows, err := r.db.Query(query, from, to)
	if err != nil {
		r.logger.Error("Failed to query vouchers by paid_at range", zap.Error(err))
		return nil, fmt.Errorf("failed to query vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []models.Voucher
	for rows.Next() {
		var (
			v         models.Voucher
			amountStr string
		)
		if err := rows.Scan(&v.ID, &v.PaidAt, &v.BankReference, &amountStr,
			&v.Reviewed, &v.ConfirmationCode, &v.ArtifactPath, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		v.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for voucher %d: %w", v.ID, err)
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

// FindByMonth returns all vouchers paid within the given year and month,
// ordered by payment timestamp. Used by the monthly report export.
func (r *VoucherRepository) FindByMonth(year int, month time.Month) ([]models.Voucher, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return r.FindByPaidAtRange(from, from.AddDate(0, 1, 0))
}

func scanVoucher(row *sql.Row) (*models.Voucher, error) {
	var (
		v         models.Voucher
		amountStr string
	)
	if err := row.Scan(&v.ID, &v.PaidAt, &v.BankReference, &amountStr,
		&v.Reviewed, &v.ConfirmationCode, &v.ArtifactPath, &v.CreatedAt); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for voucher %d: %w", v.ID, err)
	}
	v.Amount = amount
	return &v, nil
}
