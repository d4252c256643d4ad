package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Voucher represents a committed payment receipt
type Voucher struct {
	ID               int64           `json:"id"`
	PaidAt           time.Time       `json:"paid_at"` // payment date + transaction time combined
	BankReference    string          `json:"bank_reference"`
	Amount           decimal.Decimal `json:"amount"`
	Reviewed         bool            `json:"reviewed"`
	ConfirmationCode string          `json:"confirmation_code"`
	ArtifactPath     string          `json:"artifact_path"`
	CreatedAt        time.Time       `json:"created_at"`
}

// LedgerRecord links a voucher into the accounting ledger.
// Accounting concepts attach to it later; at commit time it only
// references the voucher.
type LedgerRecord struct {
	ID        int64     `json:"id"`
	VoucherID int64     `json:"voucher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Review validation states
const (
	ReviewStatePending   = "pending"
	ReviewStateConfirmed = "confirmed"
	ReviewStateNotFound  = "not_found"
)

// ReviewStatus links a voucher to the house number it was attributed to,
// with a validation state
type ReviewStatus struct {
	ID          int64     `json:"id"`
	VoucherID   int64     `json:"voucher_id"`
	HouseNumber int       `json:"house_number"`
	State       string    `json:"state"` // pending, confirmed, not_found
	CreatedAt   time.Time `json:"created_at"`
}

// HouseLedgerLink associates a house with a ledger record
type HouseLedgerLink struct {
	ID             int64     `json:"id"`
	HouseID        int64     `json:"house_id"`
	LedgerRecordID int64     `json:"ledger_record_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Tenant represents a payment submitter, keyed by normalized phone number
type Tenant struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// House represents a unit in the complex, owned by a tenant
type House struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	TenantID  int64     `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}
