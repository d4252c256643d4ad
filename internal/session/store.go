// Package session keeps per-submitter conversation state with time-based
// expiry. The store is an owned object with an injected clock so it can be
// swapped for a distributed cache without touching the conversation engine.
package session

import (
	"sync"
	"time"

	"github.com/condominio/pagobot/internal/models"
	"go.uber.org/zap"
)

// State identifies where a conversation currently is
type State string

const (
	StateWaitingHouseNumber     State = "WAITING_HOUSE_NUMBER"
	StateWaitingMissingData     State = "WAITING_MISSING_DATA"
	StateWaitingConfirmation    State = "WAITING_CONFIRMATION"
	StateWaitingCorrectionType  State = "WAITING_CORRECTION_TYPE"
	StateWaitingCorrectionValue State = "WAITING_CORRECTION_VALUE"
)

// Payload carries everything a conversation needs between turns
type Payload struct {
	Draft            models.VoucherDraft `json:"draft"`
	ArtifactPath     string              `json:"artifact_path"`
	OriginalFilename string              `json:"original_filename"`

	// Transient conversation bookkeeping
	MissingFields   []string `json:"missing_fields,omitempty"`
	CorrectingField string   `json:"correcting_field,omitempty"`
}

// Context is one submitter's conversation
type Context struct {
	State        State
	Payload      Payload
	LastActivity time.Time
}

// Store holds conversation contexts keyed by submitter identifier
// (normalized phone number or email address). Entries expire after the
// configured timeout, checked lazily on Get and actively by Sweep.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Context
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewStore creates a session store with the given idle timeout
func NewStore(timeout time.Duration, logger *zap.Logger) *Store {
	return &Store{
		entries: make(map[string]*Context),
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get returns the context for key, or nil if absent. An entry whose last
// activity is older than the timeout is evicted and reported absent.
func (s *Store) Get(key string) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.entries[key]
	if !ok {
		return nil
	}

	if s.now().Sub(ctx.LastActivity) > s.timeout {
		delete(s.entries, key)
		s.logger.Info("Conversation expired", zap.String("key", key))
		return nil
	}

	copied := *ctx
	return &copied
}

// Set overwrites the context for key and stamps the current time
func (s *Store) Set(key string, state State, payload Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &Context{
		State:        state,
		Payload:      payload,
		LastActivity: s.now(),
	}
}

// Touch refreshes the last-activity timestamp without changing state or
// payload, keeping a session alive across otherwise-silent turns. No-op for
// an absent key.
func (s *Store) Touch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx, ok := s.entries[key]; ok {
		ctx.LastActivity = s.now()
	}
}

// Clear removes the context for key
func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Sweep removes every context past the timeout and returns how many were
// dropped. Called periodically by the sweeper worker to bound memory
// independently of Get traffic.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, ctx := range s.entries {
		if now.Sub(ctx.LastActivity) > s.timeout {
			delete(s.entries, key)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("Swept expired conversations", zap.Int("removed", removed))
	}
	return removed
}

// Len returns the number of live contexts
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
