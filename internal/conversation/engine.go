// Package conversation drives the multi-turn confirmation dialogue for a
// submitted payment receipt, from extraction through atomic commit.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/condominio/pagobot/internal/dedup"
	"github.com/condominio/pagobot/internal/extraction"
	"github.com/condominio/pagobot/internal/fields"
	"github.com/condominio/pagobot/internal/messaging"
	"github.com/condominio/pagobot/internal/models"
	"github.com/condominio/pagobot/internal/session"
	"github.com/condominio/pagobot/internal/storage"
	"go.uber.org/zap"
)

// Reply is one inbound answer from a submitter. OptionID is set when the
// user tapped an interactive button or list row; Text carries free text.
type Reply struct {
	Text     string
	OptionID string
}

// value prefers the structured option id over free text
func (r Reply) value() string {
	if r.OptionID != "" {
		return r.OptionID
	}
	return r.Text
}

// Engine is the confirmation orchestrator: it owns the in-flight draft,
// dispatches each inbound event to the current state's handler, and is the
// single place that notifies the user and clears state on failure.
type Engine struct {
	sessions  *session.Store
	messenger messaging.Messenger
	extractor extraction.Extractor
	artifacts storage.ArtifactStore
	detector  *dedup.Detector
	committer *Committer
	cfg       fields.ValidatorConfig
	logger    *zap.Logger

	now   func() time.Time
	locks keyedMutex
}

// NewEngine creates the conversation engine
func NewEngine(
	sessions *session.Store,
	messenger messaging.Messenger,
	extractor extraction.Extractor,
	artifacts storage.ArtifactStore,
	detector *dedup.Detector,
	committer *Committer,
	cfg fields.ValidatorConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		sessions:  sessions,
		messenger: messenger,
		extractor: extractor,
		artifacts: artifacts,
		detector:  detector,
		committer: committer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the engine clock. Test hook for date shortcuts.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// HandleArtifact processes a newly submitted receipt file for the given
// submitter key (normalized phone or email).
func (e *Engine) HandleArtifact(ctx context.Context, from string, content []byte, filename, locale string) {
	unlock := e.locks.lock(from)
	defer unlock()
	defer e.recoverToSafety(ctx, from)

	result, err := e.extractor.Extract(ctx, content, filename, locale)
	if err != nil {
		// the extraction collaborator owns its own upload policy; nothing
		// to clean up here
		e.logger.Error("Receipt extraction failed",
			zap.String("from", from), zap.Error(err))
		e.send(ctx, from, msgProcessingError)
		return
	}

	payload := session.Payload{
		Draft:            result.Draft,
		ArtifactPath:     result.ArtifactPath,
		OriginalFilename: filename,
	}

	if missing := payload.Draft.MissingFields(); len(missing) > 0 {
		payload.MissingFields = missing
		e.sessions.Set(from, session.StateWaitingMissingData, payload)
		e.promptMissingField(ctx, from, payload, true)
		return
	}

	e.routeToHouseOrConfirmation(ctx, from, payload)
}

// HandleReply processes a text or interactive reply for the given submitter
func (e *Engine) HandleReply(ctx context.Context, from string, reply Reply) {
	unlock := e.locks.lock(from)
	defer unlock()
	defer e.recoverToSafety(ctx, from)

	sess := e.sessions.Get(from)
	if sess == nil {
		e.send(ctx, from, msgNoConversation)
		return
	}

	switch sess.State {
	case session.StateWaitingHouseNumber:
		e.onHouseNumber(ctx, from, sess, reply)
	case session.StateWaitingMissingData:
		e.onMissingData(ctx, from, sess, reply)
	case session.StateWaitingConfirmation:
		e.onConfirmation(ctx, from, sess, reply)
	case session.StateWaitingCorrectionType:
		e.onCorrectionType(ctx, from, sess, reply)
	case session.StateWaitingCorrectionValue:
		e.onCorrectionValue(ctx, from, sess, reply)
	default:
		e.logger.Error("Unrecognized conversation state, clearing context",
			zap.String("from", from),
			zap.String("state", string(sess.State)))
		e.sessions.Clear(from)
		e.send(ctx, from, msgSessionExpired)
	}
}

// onHouseNumber handles the reply to "which house is this payment for"
func (e *Engine) onHouseNumber(ctx context.Context, from string, sess *session.Context, reply Reply) {
	n, err := e.cfg.ValidateHouseNumber(reply.value())
	if err != nil {
		e.sessions.Touch(from)
		e.send(ctx, from, err.Error()+"\n\n"+msgAskHouseNumber)
		return
	}

	payload := sess.Payload
	payload.Draft.HouseNumber = n
	e.enterConfirmation(ctx, from, payload)
}

// onMissingData consumes the head of the missing-field queue
func (e *Engine) onMissingData(ctx context.Context, from string, sess *session.Context, reply Reply) {
	payload := sess.Payload
	if len(payload.MissingFields) == 0 {
		// queue should never be empty in this state
		e.logger.Error("Missing-data state with empty queue",
			zap.String("from", from))
		e.sessions.Clear(from)
		e.send(ctx, from, msgSessionExpired)
		return
	}

	head := payload.MissingFields[0]
	raw := e.resolveDateShortcut(head, reply)

	// asking to type the date by hand re-prompts without consuming the queue
	if head == models.FieldPaymentDate && (reply.OptionID == optionDateManual || isManualDateRequest(reply.Text)) {
		e.sessions.Touch(from)
		e.send(ctx, from, msgAskManualDate)
		return
	}

	if err := e.applyField(&payload, head, raw); err != nil {
		e.sessions.Touch(from)
		e.send(ctx, from, err.Error()+"\n\n"+fieldPrompt(head))
		return
	}

	payload.MissingFields = payload.MissingFields[1:]
	if len(payload.MissingFields) > 0 {
		e.sessions.Set(from, session.StateWaitingMissingData, payload)
		e.promptMissingField(ctx, from, payload, false)
		return
	}

	if payload.ArtifactPath == "" {
		// context is structurally broken, not a user mistake
		e.logger.Error("Artifact reference lost before confirmation",
			zap.String("from", from))
		e.sessions.Clear(from)
		e.send(ctx, from, msgSessionExpired)
		return
	}

	e.routeToHouseOrConfirmation(ctx, from, payload)
}

// onConfirmation handles yes/no on the summary
func (e *Engine) onConfirmation(ctx context.Context, from string, sess *session.Context, reply Reply) {
	v := reply.value()
	switch {
	case v == optionConfirm || isAffirmative(reply.Text):
		e.confirmAndCommit(ctx, from, sess.Payload)
	case v == optionCorrect || isNegative(reply.Text):
		e.sessions.Set(from, session.StateWaitingCorrectionType, sess.Payload)
		e.sendList(ctx, from, "No problem, let's fix it.", "Choose", correctionList())
	default:
		e.sessions.Touch(from)
		e.sendButtons(ctx, from, msgSummary(sess.Payload.Draft), confirmButtons())
	}
}

// onCorrectionType handles the field selection (or full cancellation)
func (e *Engine) onCorrectionType(ctx context.Context, from string, sess *session.Context, reply Reply) {
	choice := reply.value()
	switch choice {
	case optionCancel:
		e.artifacts.Delete(sess.Payload.ArtifactPath, "cancelled")
		e.sessions.Clear(from)
		e.send(ctx, from, msgCancelled)
	case models.FieldAmount, models.FieldPaymentDate, models.FieldPaymentTime,
		models.FieldReference, models.FieldHouseNumber:
		payload := sess.Payload
		payload.CorrectingField = choice
		e.sessions.Set(from, session.StateWaitingCorrectionValue, payload)

		if choice == models.FieldPaymentDate {
			e.sendButtons(ctx, from, fieldPrompt(choice), dateShortcutButtons())
		} else {
			e.send(ctx, from, fieldPrompt(choice))
		}
	default:
		e.sessions.Touch(from)
		e.sendList(ctx, from, "Please pick one of the options.", "Choose", correctionList())
	}
}

// onCorrectionValue applies the corrected value and re-presents the summary
func (e *Engine) onCorrectionValue(ctx context.Context, from string, sess *session.Context, reply Reply) {
	payload := sess.Payload
	field := payload.CorrectingField
	if field == "" {
		e.logger.Error("Correction state without a remembered field",
			zap.String("from", from))
		e.sessions.Clear(from)
		e.send(ctx, from, msgSessionExpired)
		return
	}

	if field == models.FieldPaymentDate && reply.OptionID == optionDateManual {
		e.sessions.Touch(from)
		e.send(ctx, from, msgAskManualDate)
		return
	}

	raw := e.resolveDateShortcut(field, reply)
	if err := e.applyField(&payload, field, raw); err != nil {
		e.sessions.Touch(from)
		e.send(ctx, from, err.Error()+"\n\n"+fieldPrompt(field))
		return
	}

	payload.CorrectingField = ""
	e.enterConfirmation(ctx, from, payload)
}

// confirmAndCommit runs the duplicate check and the atomic commit
func (e *Engine) confirmAndCommit(ctx context.Context, from string, payload session.Payload) {
	draft := payload.Draft

	amount, err := fields.ValidateAmount(draft.Amount)
	if err == nil {
		if paidAt, dtErr := fields.CombineDateTime(draft.PaymentDate, draft.PaymentTime); dtErr == nil {
			if match := e.detector.Check(ctx, paidAt, amount, draft.HouseNumber); match != nil {
				e.artifacts.Delete(payload.ArtifactPath, "duplicate")
				e.sessions.Clear(from)
				e.send(ctx, from, msgDuplicate(match.ConfirmationCode))
				return
			}
		}
	}

	voucher, err := e.committer.Commit(draft, from, payload.ArtifactPath)
	if err != nil {
		// artifact stays: it became permanent when extraction succeeded
		e.sessions.Clear(from)
		e.send(ctx, from, msgGenericRetry)
		return
	}

	e.sessions.Clear(from)
	e.send(ctx, from, msgCommitted(voucher.ConfirmationCode))
}

// routeToHouseOrConfirmation decides between asking for the house number
// and presenting the summary, once all mandatory fields are present.
// House decoding from the amount already happened during artifact
// processing; an unresolved house at this point means the user has to be
// asked.
func (e *Engine) routeToHouseOrConfirmation(ctx context.Context, from string, payload session.Payload) {
	if !payload.Draft.HasHouseNumber() {
		e.sessions.Set(from, session.StateWaitingHouseNumber, payload)
		e.send(ctx, from, msgAskHouseNumber)
		return
	}

	e.enterConfirmation(ctx, from, payload)
}

// enterConfirmation saves the draft and presents the summary
func (e *Engine) enterConfirmation(ctx context.Context, from string, payload session.Payload) {
	e.sessions.Set(from, session.StateWaitingConfirmation, payload)
	e.sendButtons(ctx, from, msgSummary(payload.Draft), confirmButtons())
}

// promptMissingField asks for the head of the missing-field queue. The
// extraction-provided hint is included only on the first prompt.
func (e *Engine) promptMissingField(ctx context.Context, from string, payload session.Payload, first bool) {
	head := payload.MissingFields[0]
	prompt := fieldPrompt(head)
	if first && payload.Draft.MissingPrompt != "" {
		prompt = payload.Draft.MissingPrompt + "\n\n" + prompt
	}

	if head == models.FieldPaymentDate {
		e.sendButtons(ctx, from, prompt, dateShortcutButtons())
		return
	}
	e.send(ctx, from, prompt)
}

// applyField validates raw against the named field and writes it into the
// draft. Validation errors are returned for re-prompting, never logged as
// failures.
func (e *Engine) applyField(payload *session.Payload, field, raw string) error {
	switch field {
	case models.FieldAmount:
		amount, err := fields.ValidateAmount(raw)
		if err != nil {
			return err
		}
		payload.Draft.Amount = amount.String()
	case models.FieldPaymentDate:
		date, err := fields.ValidateDate(raw)
		if err != nil {
			return err
		}
		payload.Draft.PaymentDate = date
	case models.FieldPaymentTime:
		clock, err := fields.ValidateTime(raw)
		if err != nil {
			return err
		}
		payload.Draft.PaymentTime = clock
	case models.FieldReference:
		ref, err := fields.ValidateReference(raw)
		if err != nil {
			return err
		}
		if ref == "-" {
			ref = ""
		}
		payload.Draft.BankReference = ref
	case models.FieldHouseNumber:
		n, err := e.cfg.ValidateHouseNumber(raw)
		if err != nil {
			return err
		}
		payload.Draft.HouseNumber = n
	}
	return nil
}

// resolveDateShortcut maps the today/yesterday buttons to concrete dates
func (e *Engine) resolveDateShortcut(field string, reply Reply) string {
	if field != models.FieldPaymentDate {
		return reply.value()
	}
	switch reply.OptionID {
	case optionDateToday:
		return e.now().Format("2006-01-02")
	case optionDateYest:
		return e.now().AddDate(0, 0, -1).Format("2006-01-02")
	}
	return reply.value()
}

// recoverToSafety is the outermost guard: any panic escaping a handler
// clears the conversation and tells the user to retry, so a conversation
// can never get stuck
func (e *Engine) recoverToSafety(ctx context.Context, from string) {
	if r := recover(); r != nil {
		e.logger.Error("Conversation handler panicked",
			zap.String("from", from),
			zap.Any("panic", r))
		e.sessions.Clear(from)
		e.send(ctx, from, msgGenericRetry)
	}
}

func (e *Engine) send(ctx context.Context, to, body string) {
	if err := e.messenger.SendText(ctx, to, body); err != nil {
		e.logger.Error("Failed to send message", zap.String("to", to), zap.Error(err))
	}
}

func (e *Engine) sendButtons(ctx context.Context, to, body string, buttons []messaging.Button) {
	if err := e.messenger.SendButtons(ctx, to, body, buttons); err != nil {
		e.logger.Error("Failed to send buttons", zap.String("to", to), zap.Error(err))
	}
}

func (e *Engine) sendList(ctx context.Context, to, body, label string, sections []messaging.ListSection) {
	if err := e.messenger.SendList(ctx, to, body, label, sections); err != nil {
		e.logger.Error("Failed to send list", zap.String("to", to), zap.Error(err))
	}
}

// keyedMutex serializes handling per submitter: one inbound event for a key
// runs to completion before the next is admitted, while different
// submitters proceed in parallel
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
