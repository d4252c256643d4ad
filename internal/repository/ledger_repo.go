package repository

import (
	"database/sql"
	"fmt"

	"github.com/condominio/pagobot/internal/models"
	"go.uber.org/zap"
)

// LedgerRecordRepository handles ledger record database operations
type LedgerRecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLedgerRecordRepository creates a new ledger record repository
func NewLedgerRecordRepository(db *sql.DB, logger *zap.Logger) *LedgerRecordRepository {
	return &LedgerRecordRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a ledger record referencing a voucher
func (r *LedgerRecordRepository) Create(tx *sql.Tx, record *models.LedgerRecord) error {
	result, err := pick(r.db, tx).Exec(
		"INSERT INTO ledger_records (voucher_id) VALUES (?)",
		record.VoucherID,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger record",
			zap.Int64("voucher_id", record.VoucherID), zap.Error(err))
		return fmt.Errorf("failed to create ledger record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// GetByVoucherID retrieves the ledger record for a voucher.
// Returns (nil, nil) when absent.
func (r *LedgerRecordRepository) GetByVoucherID(voucherID int64) (*models.LedgerRecord, error) {
	var record models.LedgerRecord
	err := r.db.QueryRow(
		"SELECT id, voucher_id, created_at FROM ledger_records WHERE voucher_id = ?",
		voucherID,
	).Scan(&record.ID, &record.VoucherID, &record.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get ledger record",
			zap.Int64("voucher_id", voucherID), zap.Error(err))
		return nil, fmt.Errorf("failed to get ledger record: %w", err)
	}
	return &record, nil
}
