package repository

import (
	"database/sql"
	"fmt"

	"github.com/condominio/pagobot/internal/models"
	"go.uber.org/zap"
)

// HouseLedgerRepository handles house-to-ledger-record associations
type HouseLedgerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHouseLedgerRepository creates a new house ledger link repository
func NewHouseLedgerRepository(db *sql.DB, logger *zap.Logger) *HouseLedgerRepository {
	return &HouseLedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a house-ledger association
func (r *HouseLedgerRepository) Create(tx *sql.Tx, link *models.HouseLedgerLink) error {
	result, err := pick(r.db, tx).Exec(
		"INSERT INTO house_ledger_links (house_id, ledger_record_id) VALUES (?, ?)",
		link.HouseID, link.LedgerRecordID,
	)
	if err != nil {
		r.logger.Error("Failed to create house ledger link",
			zap.Int64("house_id", link.HouseID),
			zap.Int64("ledger_record_id", link.LedgerRecordID),
			zap.Error(err))
		return fmt.Errorf("failed to create house ledger link: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	link.ID = id
	return nil
}

// GetByLedgerRecordID retrieves the association for a ledger record.
// Returns (nil, nil) when absent.
func (r *HouseLedgerRepository) GetByLedgerRecordID(recordID int64) (*models.HouseLedgerLink, error) {
	var link models.HouseLedgerLink
	err := r.db.QueryRow(
		"SELECT id, house_id, ledger_record_id, created_at FROM house_ledger_links WHERE ledger_record_id = ?",
		recordID,
	).Scan(&link.ID, &link.HouseID, &link.LedgerRecordID, &link.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get house ledger link",
			zap.Int64("ledger_record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to get house ledger link: %w", err)
	}
	return &link, nil
}
