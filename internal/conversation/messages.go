package conversation

import (
	"fmt"
	"strings"

	"github.com/condominio/pagobot/internal/messaging"
	"github.com/condominio/pagobot/internal/models"
)

// Reply option ids used in interactive messages
const (
	optionConfirm    = "confirm"
	optionCorrect    = "correct"
	optionCancel     = "cancel"
	optionDateToday  = "date_today"
	optionDateYest   = "date_yesterday"
	optionDateManual = "date_manual"
)

const (
	msgSessionExpired  = "Your session expired. Please send your payment receipt again to start over."
	msgGenericRetry    = "Something went wrong on our side. Please send your receipt again in a few minutes."
	msgProcessingError = "We could not read that receipt. Please send a clearer photo or PDF of your payment."
	msgCancelled       = "Your submission was cancelled. Send a new receipt whenever you like."
	msgNoConversation  = "Send a photo or PDF of your payment receipt to begin."
	msgAskHouseNumber  = "We could not tell which house this payment is for. Please reply with your house number (1-66)."
	msgAskManualDate   = "Please type the payment date (for example 2025-01-10)."
)

func msgDuplicate(code string) string {
	return fmt.Sprintf("This payment was already registered with confirmation code %s. No new record was created.", code)
}

func msgCommitted(code string) string {
	return fmt.Sprintf("Payment registered. Your confirmation code is %s. Keep it for any follow-up.", code)
}

func msgSummary(draft models.VoucherDraft) string {
	var b strings.Builder
	b.WriteString("Please confirm your payment details:\n")
	fmt.Fprintf(&b, "• House: %d\n", draft.HouseNumber)
	fmt.Fprintf(&b, "• Amount: %s\n", draft.Amount)
	fmt.Fprintf(&b, "• Date: %s\n", draft.PaymentDate)
	fmt.Fprintf(&b, "• Time: %s\n", draft.PaymentTime)
	if draft.BankReference != "" {
		fmt.Fprintf(&b, "• Reference: %s\n", draft.BankReference)
	}
	b.WriteString("\nIs everything correct?")
	return b.String()
}

func confirmButtons() []messaging.Button {
	return []messaging.Button{
		{ID: optionConfirm, Title: "Yes, register it"},
		{ID: optionCorrect, Title: "No, fix something"},
	}
}

func dateShortcutButtons() []messaging.Button {
	return []messaging.Button{
		{ID: optionDateToday, Title: "Today"},
		{ID: optionDateYest, Title: "Yesterday"},
		{ID: optionDateManual, Title: "Another date"},
	}
}

// correctionList offers every correctable field plus cancellation
func correctionList() []messaging.ListSection {
	return []messaging.ListSection{{
		Title: "What should we fix?",
		Rows: []messaging.ListRow{
			{ID: models.FieldAmount, Title: "Amount"},
			{ID: models.FieldPaymentDate, Title: "Payment date"},
			{ID: models.FieldPaymentTime, Title: "Payment time"},
			{ID: models.FieldReference, Title: "Bank reference"},
			{ID: models.FieldHouseNumber, Title: "House number"},
			{ID: optionCancel, Title: "Cancel everything"},
		},
	}}
}

// fieldPrompt asks for a field's value by id
func fieldPrompt(field string) string {
	switch field {
	case models.FieldAmount:
		return "What is the paid amount? (for example 500.15)"
	case models.FieldPaymentDate:
		return "What date was the payment made?"
	case models.FieldPaymentTime:
		return "What time was the payment made? (for example 10:30:00)"
	case models.FieldReference:
		return "What is the bank reference on the receipt? Reply with a dash (-) if there is none."
	case models.FieldHouseNumber:
		return msgAskHouseNumber
	default:
		return "Please send the corrected value."
	}
}

func isAffirmative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "si", "sí", "ok", "confirm", "confirmar", "1":
		return true
	}
	return false
}

func isNegative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "no", "n", "fix", "corregir", "2":
		return true
	}
	return false
}

// isManualDateRequest recognizes the sentinel asking to type the date by
// hand instead of using a shortcut
func isManualDateRequest(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "other", "another", "otra", "manual", "another date":
		return true
	}
	return false
}
