package conversation

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/condominio/pagobot/internal/dedup"
	"github.com/condominio/pagobot/internal/extraction"
	"github.com/condominio/pagobot/internal/fields"
	"github.com/condominio/pagobot/internal/messaging"
	"github.com/condominio/pagobot/internal/models"
	"github.com/condominio/pagobot/internal/repository"
	"github.com/condominio/pagobot/internal/session"
	"github.com/condominio/pagobot/internal/storage"
	"github.com/condominio/pagobot/pkg/database"
)

type buttonSend struct {
	body    string
	buttons []messaging.Button
}

type listSend struct {
	body     string
	sections []messaging.ListSection
}

// fakeMessenger records everything the engine sends
type fakeMessenger struct {
	texts   []string
	buttons []buttonSend
	lists   []listSend
}

func (f *fakeMessenger) SendText(_ context.Context, _ string, body string) error {
	f.texts = append(f.texts, body)
	return nil
}

func (f *fakeMessenger) SendButtons(_ context.Context, _ string, body string, buttons []messaging.Button) error {
	f.buttons = append(f.buttons, buttonSend{body: body, buttons: buttons})
	return nil
}

func (f *fakeMessenger) SendList(_ context.Context, _ string, body string, _ string, sections []messaging.ListSection) error {
	f.lists = append(f.lists, listSend{body: body, sections: sections})
	return nil
}

func (f *fakeMessenger) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.texts)
	return f.texts[len(f.texts)-1]
}

func (f *fakeMessenger) lastButtons(t *testing.T) buttonSend {
	t.Helper()
	require.NotEmpty(t, f.buttons)
	return f.buttons[len(f.buttons)-1]
}

// fakeExtractor returns a canned result without touching any OCR backend
type fakeExtractor struct {
	result *extraction.Result
	err    error
}

func (f *fakeExtractor) Extract(context.Context, []byte, string, string) (*extraction.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.result
	return &copied, nil
}

type engineEnv struct {
	db        *database.DB
	engine    *Engine
	sessions  *session.Store
	messenger *fakeMessenger
	extractor *fakeExtractor
	artifacts *storage.LocalArtifactStore
	committer *Committer
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	logger := zap.NewNop()
	db := newTestDB(t)

	vouchers := repository.NewVoucherRepository(db.DB, logger)
	ledgers := repository.NewLedgerRecordRepository(db.DB, logger)
	links := repository.NewHouseLedgerRepository(db.DB, logger)
	houses := repository.NewHouseRepository(db.DB, logger)

	committer := newTestCommitter(t, db)
	detector := dedup.NewDetector(vouchers, ledgers, links, houses, logger)

	clock := func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) }
	sessions := session.NewStore(10*time.Minute, logger).WithClock(clock)
	messenger := &fakeMessenger{}
	extractor := &fakeExtractor{}
	artifacts := storage.NewLocalArtifactStore(t.TempDir(), logger)

	engine := NewEngine(sessions, messenger, extractor, artifacts,
		detector, committer, fields.DefaultConfig(), logger).WithClock(clock)

	return &engineEnv{
		db:        db,
		engine:    engine,
		sessions:  sessions,
		messenger: messenger,
		extractor: extractor,
		artifacts: artifacts,
		committer: committer,
	}
}

// saveArtifact stores a dummy receipt file and returns its path, so tests
// can assert on deletion
func (env *engineEnv) saveArtifact(t *testing.T) string {
	t.Helper()
	path, err := env.artifacts.Save("receipt.pdf", []byte("%PDF-1.4 test"))
	require.NoError(t, err)
	return path
}

func (env *engineEnv) stubExtraction(t *testing.T, draft models.VoucherDraft) string {
	t.Helper()
	path := env.saveArtifact(t)
	env.extractor.result = &extraction.Result{Draft: draft, ArtifactPath: path}
	return path
}

func TestEngineHappyPath(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	env.stubExtraction(t, readyDraft())
	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")

	// complete draft with a house number goes straight to the summary
	summary := env.messenger.lastButtons(t)
	assert.Contains(t, summary.body, "House: 12")
	assert.Contains(t, summary.body, "1500.12")
	require.Len(t, summary.buttons, 2)

	sess := env.sessions.Get(from)
	require.NotNil(t, sess)
	assert.Equal(t, session.StateWaitingConfirmation, sess.State)

	env.engine.HandleReply(ctx, from, Reply{OptionID: optionConfirm})

	assert.Contains(t, env.messenger.lastText(t), "confirmation code")
	assert.Regexp(t, `\d{6}-[A-Z0-9]{5}`, env.messenger.lastText(t))

	assert.Nil(t, env.sessions.Get(from))
	assert.Equal(t, 1, countRows(t, env.db, "vouchers"))
	assert.Equal(t, 1, countRows(t, env.db, "ledger_records"))
	assert.Equal(t, 1, countRows(t, env.db, "review_statuses"))
	assert.Equal(t, 1, countRows(t, env.db, "house_ledger_links"))
}

func TestEngineFullFlowWithHousePrompt(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	env.stubExtraction(t, models.VoucherDraft{
		Amount:        "500.15",
		PaymentDate:   "2025-01-10",
		PaymentTime:   "10:30:00",
		BankReference: "ABC",
	})
	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")

	// the cents did not resolve a house, so the engine asks
	assert.Equal(t, msgAskHouseNumber, env.messenger.lastText(t))
	assert.Equal(t, session.StateWaitingHouseNumber, env.sessions.Get(from).State)

	env.engine.HandleReply(ctx, from, Reply{Text: "15"})

	summary := env.messenger.lastButtons(t).body
	assert.Contains(t, summary, "15")
	assert.Contains(t, summary, "500.15")
	assert.Contains(t, summary, "2025-01-10")

	env.engine.HandleReply(ctx, from, Reply{Text: "yes"})

	require.Equal(t, 1, countRows(t, env.db, "vouchers"))
	var amount, code string
	require.NoError(t, env.db.QueryRow(
		"SELECT amount, confirmation_code FROM vouchers").Scan(&amount, &code))
	assert.Equal(t, "500.15", amount)
	assert.Regexp(t, codePattern, code)
	assert.Nil(t, env.sessions.Get(from))
}

func TestEngineAsksForHouseNumber(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	draft := readyDraft()
	draft.HouseNumber = 0
	env.stubExtraction(t, draft)

	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")
	assert.Equal(t, msgAskHouseNumber, env.messenger.lastText(t))
	assert.Equal(t, session.StateWaitingHouseNumber, env.sessions.Get(from).State)

	// out-of-range answers re-prompt without losing the conversation
	env.engine.HandleReply(ctx, from, Reply{Text: "99"})
	assert.Contains(t, env.messenger.lastText(t), msgAskHouseNumber)
	assert.Equal(t, session.StateWaitingHouseNumber, env.sessions.Get(from).State)

	env.engine.HandleReply(ctx, from, Reply{Text: "14"})
	assert.Contains(t, env.messenger.lastButtons(t).body, "House: 14")
	assert.Equal(t, session.StateWaitingConfirmation, env.sessions.Get(from).State)
}

func TestEngineMissingDataFlow(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	draft := readyDraft()
	draft.PaymentDate = ""
	draft.PaymentTime = ""
	draft.MissingPrompt = "The date and time were unreadable."
	env.stubExtraction(t, draft)

	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")

	// date comes first and offers shortcuts; the extraction hint leads
	first := env.messenger.lastButtons(t)
	assert.Contains(t, first.body, "The date and time were unreadable.")
	require.Len(t, first.buttons, 3)
	assert.Equal(t, session.StateWaitingMissingData, env.sessions.Get(from).State)

	// "yesterday" resolves against the engine clock
	env.engine.HandleReply(ctx, from, Reply{OptionID: optionDateYest})
	assert.Contains(t, env.messenger.lastText(t), "time")
	assert.Equal(t, "2025-01-14", env.sessions.Get(from).Payload.Draft.PaymentDate)

	env.engine.HandleReply(ctx, from, Reply{Text: "09:15:00"})
	assert.Equal(t, session.StateWaitingConfirmation, env.sessions.Get(from).State)
	assert.Contains(t, env.messenger.lastButtons(t).body, "2025-01-14")
}

func TestEngineManualDateEntry(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	draft := readyDraft()
	draft.PaymentDate = ""
	env.stubExtraction(t, draft)
	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")

	// asking to type the date keeps the queue where it was
	env.engine.HandleReply(ctx, from, Reply{OptionID: optionDateManual})
	assert.Equal(t, msgAskManualDate, env.messenger.lastText(t))
	assert.Equal(t, session.StateWaitingMissingData, env.sessions.Get(from).State)

	env.engine.HandleReply(ctx, from, Reply{Text: "2025-01-08"})
	assert.Equal(t, session.StateWaitingConfirmation, env.sessions.Get(from).State)
	assert.Equal(t, "2025-01-08", env.sessions.Get(from).Payload.Draft.PaymentDate)
}

func TestEngineRejectionNeverPersists(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	env.stubExtraction(t, readyDraft())
	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")

	env.engine.HandleReply(ctx, from, Reply{Text: "no"})

	require.NotEmpty(t, env.messenger.lists)
	assert.Equal(t, session.StateWaitingCorrectionType, env.sessions.Get(from).State)
	assert.Equal(t, 0, countRows(t, env.db, "vouchers"))
}

func TestEngineCorrectionLoop(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	env.stubExtraction(t, readyDraft())
	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")
	env.engine.HandleReply(ctx, from, Reply{OptionID: optionCorrect})

	env.engine.HandleReply(ctx, from, Reply{OptionID: models.FieldAmount})
	assert.Equal(t, session.StateWaitingCorrectionValue, env.sessions.Get(from).State)

	// an invalid value re-prompts for the same field
	env.engine.HandleReply(ctx, from, Reply{Text: "lots"})
	assert.Equal(t, session.StateWaitingCorrectionValue, env.sessions.Get(from).State)
	assert.Equal(t, models.FieldAmount, env.sessions.Get(from).Payload.CorrectingField)

	env.engine.HandleReply(ctx, from, Reply{Text: "2000.08"})
	assert.Equal(t, session.StateWaitingConfirmation, env.sessions.Get(from).State)
	assert.Contains(t, env.messenger.lastButtons(t).body, "2000.08")

	// a bare dash clears the optional reference
	env.engine.HandleReply(ctx, from, Reply{OptionID: optionCorrect})
	env.engine.HandleReply(ctx, from, Reply{OptionID: models.FieldReference})
	env.engine.HandleReply(ctx, from, Reply{Text: "-"})
	assert.Empty(t, env.sessions.Get(from).Payload.Draft.BankReference)
	assert.NotContains(t, env.messenger.lastButtons(t).body, "Reference")
}

func TestEngineCancelDeletesArtifact(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	path := env.stubExtraction(t, readyDraft())
	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")
	env.engine.HandleReply(ctx, from, Reply{OptionID: optionCorrect})
	env.engine.HandleReply(ctx, from, Reply{OptionID: optionCancel})

	assert.Equal(t, msgCancelled, env.messenger.lastText(t))
	assert.Nil(t, env.sessions.Get(from))
	assert.Equal(t, 0, countRows(t, env.db, "vouchers"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEngineDuplicateDetection(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	// first submission commits
	env.stubExtraction(t, readyDraft())
	env.engine.HandleArtifact(ctx, "5551111111", []byte("pdf"), "receipt.pdf", "es")
	env.engine.HandleReply(ctx, "5551111111", Reply{OptionID: optionConfirm})
	require.Equal(t, 1, countRows(t, env.db, "vouchers"))

	// the same payment arrives again from a second device
	path := env.stubExtraction(t, readyDraft())
	env.engine.HandleArtifact(ctx, "5552222222", []byte("pdf"), "receipt.pdf", "es")
	env.engine.HandleReply(ctx, "5552222222", Reply{OptionID: optionConfirm})

	assert.Contains(t, env.messenger.lastText(t), "already registered")
	assert.Equal(t, 1, countRows(t, env.db, "vouchers"))
	assert.Nil(t, env.sessions.Get("5552222222"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEngineExtractionFailure(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	env.extractor.err = errors.New("vision API unavailable")
	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")

	assert.Equal(t, msgProcessingError, env.messenger.lastText(t))
	assert.Nil(t, env.sessions.Get(from))
}

func TestEngineCommitFailureKeepsArtifact(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	path := env.stubExtraction(t, readyDraft())
	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")

	_, err := env.db.Exec("DROP TABLE house_ledger_links")
	require.NoError(t, err)

	env.engine.HandleReply(ctx, from, Reply{OptionID: optionConfirm})

	assert.Equal(t, msgGenericRetry, env.messenger.lastText(t))
	assert.Nil(t, env.sessions.Get(from))
	assert.Equal(t, 0, countRows(t, env.db, "vouchers"))

	// the stored receipt survives commit failures for manual follow-up
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestEngineNoConversation(t *testing.T) {
	env := newEngineEnv(t)

	env.engine.HandleReply(context.Background(), "5551234567", Reply{Text: "hello"})
	assert.Equal(t, msgNoConversation, env.messenger.lastText(t))
}

func TestEngineUnknownConfirmationReplyReprompts(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()
	const from = "5551234567"

	env.stubExtraction(t, readyDraft())
	env.engine.HandleArtifact(ctx, from, []byte("pdf"), "receipt.pdf", "es")

	env.engine.HandleReply(ctx, from, Reply{Text: "maybe?"})
	assert.Equal(t, session.StateWaitingConfirmation, env.sessions.Get(from).State)
	assert.Len(t, env.messenger.buttons, 2) // summary sent twice
}
