package repository

import (
	"database/sql"
	"fmt"

	"github.com/condominio/pagobot/internal/models"
	"go.uber.org/zap"
)

// HouseRepository handles house database operations
type HouseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHouseRepository creates a new house repository
func NewHouseRepository(db *sql.DB, logger *zap.Logger) *HouseRepository {
	return &HouseRepository{
		db:     db,
		logger: logger,
	}
}

// GetByNumber retrieves a house by unit number.
// Returns (nil, nil) when absent.
func (r *HouseRepository) GetByNumber(tx *sql.Tx, number int) (*models.House, error) {
	var house models.House
	err := pick(r.db, tx).QueryRow(
		"SELECT id, number, tenant_id, created_at FROM houses WHERE number = ?",
		number,
	).Scan(&house.ID, &house.Number, &house.TenantID, &house.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get house", zap.Int("number", number), zap.Error(err))
		return nil, fmt.Errorf("failed to get house: %w", err)
	}
	return &house, nil
}

// GetByID retrieves a house by id. Returns (nil, nil) when absent.
func (r *HouseRepository) GetByID(id int64) (*models.House, error) {
	var house models.House
	err := r.db.QueryRow(
		"SELECT id, number, tenant_id, created_at FROM houses WHERE id = ?",
		id,
	).Scan(&house.ID, &house.Number, &house.TenantID, &house.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get house by id", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get house: %w", err)
	}
	return &house, nil
}

// Create inserts a house owned by a tenant
func (r *HouseRepository) Create(tx *sql.Tx, house *models.House) error {
	result, err := pick(r.db, tx).Exec(
		"INSERT INTO houses (number, tenant_id) VALUES (?, ?)",
		house.Number, house.TenantID,
	)
	if err != nil {
		r.logger.Error("Failed to create house", zap.Int("number", house.Number), zap.Error(err))
		return fmt.Errorf("failed to create house: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	house.ID = id
	return nil
}

// UpdateTenant reassigns ownership of a house. Payments decide ownership:
// the most recent payer for a unit becomes its tenant (last writer wins).
func (r *HouseRepository) UpdateTenant(tx *sql.Tx, houseID, tenantID int64) error {
	_, err := pick(r.db, tx).Exec(
		"UPDATE houses SET tenant_id = ? WHERE id = ?",
		tenantID, houseID,
	)
	if err != nil {
		r.logger.Error("Failed to reassign house tenant",
			zap.Int64("house_id", houseID),
			zap.Int64("tenant_id", tenantID),
			zap.Error(err))
		return fmt.Errorf("failed to reassign house tenant: %w", err)
	}
	return nil
}

// FindOrCreate returns the house for number, creating it on first reference.
// An existing house owned by someone else is reassigned to tenantID.
func (r *HouseRepository) FindOrCreate(tx *sql.Tx, number int, tenantID int64) (*models.House, error) {
	house, err := r.GetByNumber(tx, number)
	if err != nil {
		return nil, err
	}

	if house == nil {
		house = &models.House{Number: number, TenantID: tenantID}
		if err := r.Create(tx, house); err != nil {
			return nil, err
		}
		return house, nil
	}

	if house.TenantID != tenantID {
		if err := r.UpdateTenant(tx, house.ID, tenantID); err != nil {
			return nil, err
		}
		house.TenantID = tenantID
	}
	return house, nil
}
