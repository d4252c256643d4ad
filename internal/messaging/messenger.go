// Package messaging delivers conversation prompts back to submitters over
// WhatsApp or email.
package messaging

import "context"

// Button is one tappable reply option (WhatsApp allows at most three)
type Button struct {
	ID    string
	Title string
}

// ListRow is one selectable row inside a list section
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups rows under an optional title
type ListSection struct {
	Title string
	Rows  []ListRow
}

// Messenger sends outbound messages to a submitter. Implementations that
// cannot render interactive elements (email) degrade them to numbered text.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, buttons []Button) error
	SendList(ctx context.Context, to, body, buttonLabel string, sections []ListSection) error
}
