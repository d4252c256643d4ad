package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/condominio/pagobot/internal/models"
	"go.uber.org/zap"
)

// TenantRepository handles tenant database operations
type TenantRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *sql.DB, logger *zap.Logger) *TenantRepository {
	return &TenantRepository{
		db:     db,
		logger: logger,
	}
}

// NormalizePhone strips formatting characters so the same submitter always
// maps to the same tenant row regardless of how the channel formats the
// number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GetByPhone retrieves a tenant by normalized phone number.
// Returns (nil, nil) when absent.
func (r *TenantRepository) GetByPhone(tx *sql.Tx, phone string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := pick(r.db, tx).QueryRow(
		"SELECT id, phone, name, created_at FROM tenants WHERE phone = ?",
		NormalizePhone(phone),
	).Scan(&tenant.ID, &tenant.Phone, &tenant.Name, &tenant.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get tenant by phone", zap.Error(err))
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// Create inserts a tenant, normalizing the phone number first
func (r *TenantRepository) Create(tx *sql.Tx, tenant *models.Tenant) error {
	tenant.Phone = NormalizePhone(tenant.Phone)

	result, err := pick(r.db, tx).Exec(
		"INSERT INTO tenants (phone, name) VALUES (?, ?)",
		tenant.Phone, tenant.Name,
	)
	if err != nil {
		r.logger.Error("Failed to create tenant", zap.Error(err))
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	tenant.ID = id
	return nil
}

// FindOrCreate returns the tenant for phone, creating one on first payment
func (r *TenantRepository) FindOrCreate(tx *sql.Tx, phone, name string) (*models.Tenant, error) {
	tenant, err := r.GetByPhone(tx, phone)
	if err != nil {
		return nil, err
	}
	if tenant != nil {
		return tenant, nil
	}

	tenant = &models.Tenant{Phone: phone, Name: name}
	if err := r.Create(tx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}
