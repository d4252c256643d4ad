package repository

import (
	"database/sql"
	"fmt"

	"github.com/condominio/pagobot/internal/models"
	"go.uber.org/zap"
)

// ReviewStatusRepository handles review status database operations
type ReviewStatusRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReviewStatusRepository creates a new review status repository
func NewReviewStatusRepository(db *sql.DB, logger *zap.Logger) *ReviewStatusRepository {
	return &ReviewStatusRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a review status row linking a voucher to a house number
func (r *ReviewStatusRepository) Create(tx *sql.Tx, status *models.ReviewStatus) error {
	result, err := pick(r.db, tx).Exec(
		"INSERT INTO review_statuses (voucher_id, house_number, state) VALUES (?, ?, ?)",
		status.VoucherID, status.HouseNumber, status.State,
	)
	if err != nil {
		r.logger.Error("Failed to create review status",
			zap.Int64("voucher_id", status.VoucherID), zap.Error(err))
		return fmt.Errorf("failed to create review status: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	status.ID = id
	return nil
}

// GetByVoucherID retrieves the review status for a voucher.
// Returns (nil, nil) when absent.
func (r *ReviewStatusRepository) GetByVoucherID(voucherID int64) (*models.ReviewStatus, error) {
	var status models.ReviewStatus
	err := r.db.QueryRow(
		"SELECT id, voucher_id, house_number, state, created_at FROM review_statuses WHERE voucher_id = ?",
		voucherID,
	).Scan(&status.ID, &status.VoucherID, &status.HouseNumber, &status.State, &status.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get review status",
			zap.Int64("voucher_id", voucherID), zap.Error(err))
		return nil, fmt.Errorf("failed to get review status: %w", err)
	}
	return &status, nil
}
