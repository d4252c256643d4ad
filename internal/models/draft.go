package models

// VoucherDraft is the mutable working copy of extracted receipt fields.
// All fields stay raw strings until validation; HouseNumber is 0 until
// decoded or supplied by the user.
type VoucherDraft struct {
	Amount        string `json:"amount"`
	PaymentDate   string `json:"payment_date"`
	BankReference string `json:"bank_reference"`
	PaymentTime   string `json:"payment_time"`
	HouseNumber   int    `json:"house_number"`

	// FieldsIncomplete is set by extraction when mandatory fields could
	// not be read from the receipt; MissingPrompt carries the
	// extraction-provided hint for the user.
	FieldsIncomplete bool   `json:"fields_incomplete"`
	MissingPrompt    string `json:"missing_prompt,omitempty"`
}

// HasHouseNumber reports whether the draft carries a decoded or
// user-supplied house number.
func (d *VoucherDraft) HasHouseNumber() bool {
	return d.HouseNumber > 0
}

// MissingFields returns the mandatory fields still absent from the draft,
// in prompt order. The bank reference is optional and never listed.
func (d *VoucherDraft) MissingFields() []string {
	var missing []string
	if d.Amount == "" {
		missing = append(missing, FieldAmount)
	}
	if d.PaymentDate == "" {
		missing = append(missing, FieldPaymentDate)
	}
	if d.PaymentTime == "" {
		missing = append(missing, FieldPaymentTime)
	}
	return missing
}

// Field identifiers used across prompts, the missing-data queue and the
// correction loop.
const (
	FieldAmount      = "amount"
	FieldPaymentDate = "payment_date"
	FieldPaymentTime = "payment_time"
	FieldReference   = "bank_reference"
	FieldHouseNumber = "house_number"
)
