package engine

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/roach88/draftkeep/internal/clock"
	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

// Settings are the timing and threshold knobs of a session.
type Settings struct {
	SaveDebounce     time.Duration
	ValidateDebounce time.Duration
	ScoreDebounce    time.Duration
	SettleDelay      time.Duration
	CelebrateFor     time.Duration

	// RecoveryWindow bounds how old a draft may be to count as a crash
	// candidate. Zero disables the bound.
	RecoveryWindow time.Duration

	// CelebrateAt is the overall score that triggers the celebration flag
	// when crossed upwards.
	CelebrateAt float64
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		SaveDebounce:     2 * time.Second,
		ValidateDebounce: 500 * time.Millisecond,
		ScoreDebounce:    500 * time.Millisecond,
		SettleDelay:      300 * time.Millisecond,
		CelebrateFor:     3 * time.Second,
		RecoveryWindow:   2 * time.Hour,
		CelebrateAt:      8,
	}
}

// Session owns one in-progress Submission and keeps it durable.
//
// Thread-safety model:
//   - every exported method is safe from any goroutine
//   - timer callbacks take the same lock, so state changes never interleave
//   - store calls are made while holding the lock; the unsaved flag is
//     only cleared after the store returns
type Session struct {
	mu sync.Mutex

	store      DraftStore
	clock      clock.Clock
	settings   Settings
	resolver   *identity.Resolver
	validation *Validation
	fields     FieldValidator
	scorer     Scorer
	backend    Backend
	ids        IDGenerator
	logger     *slog.Logger
	metrics    *Metrics
	hub        *Hub
	migrator   *Migrator
	detector   *Detector

	id     string
	client string
	host   string

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	sub       form.Submission
	step      int
	key       string
	confirmed *identity.Confirmed
	unsaved   bool
	lastSaved time.Time
	// written holds the keys this session's draft has been stored under
	// since it was started, resumed or reset.
	written map[string]bool

	result       ValidationResult
	fieldResults map[form.Path]FieldResult
	celebrating  bool

	prompt          Prompt
	handled         map[string]bool
	userDraftsShown bool

	saveT      *Debouncer
	validateT  *Debouncer
	scoreT     *Debouncer
	scanT      *Debouncer
	userScanT  *Debouncer
	celebrateT *Debouncer
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock sets the clock. Default: clock.System.
func WithClock(c clock.Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithSettings replaces the timing settings.
func WithSettings(settings Settings) SessionOption {
	return func(s *Session) { s.settings = settings }
}

// WithPolicy sets the stable-identity policy used for keys and for the
// critical submit checks.
func WithPolicy(p identity.Policy) SessionOption {
	return func(s *Session) {
		s.resolver = identity.NewResolver(p, func() time.Time { return s.clock.Now() })
	}
}

// WithStepValidator sets the step validator.
func WithStepValidator(v StepValidator) SessionOption {
	return func(s *Session) { s.validation = NewValidation(v) }
}

// WithFieldValidator sets the per-keystroke field validator.
func WithFieldValidator(v FieldValidator) SessionOption {
	return func(s *Session) { s.fields = v }
}

// WithScorer enables the derived score pipeline.
func WithScorer(sc Scorer) SessionOption {
	return func(s *Session) { s.scorer = sc }
}

// WithBackend sets the submission backend.
func WithBackend(b Backend) SessionOption {
	return func(s *Session) { s.backend = b }
}

// WithIDGenerator sets the session ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) SessionOption {
	return func(s *Session) { s.ids = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithHub publishes session events on h instead of a private hub.
func WithHub(h *Hub) SessionOption {
	return func(s *Session) { s.hub = h }
}

// WithClientInfo sets the client and host recorded in every draft.
func WithClientInfo(client, host string) SessionOption {
	return func(s *Session) {
		s.client = client
		s.host = host
	}
}

// NewSession creates a session editing an empty submission with an unset
// period. Nothing is written until the user enters an identity or period.
func NewSession(st DraftStore, opts ...SessionOption) *Session {
	s := &Session{
		store:        st,
		clock:        clock.System{},
		settings:     DefaultSettings(),
		validation:   NewValidation(nil),
		ids:          UUIDv7Generator{},
		logger:       slog.Default(),
		client:       "draftkeep",
		handled:      map[string]bool{},
		fieldResults: map[form.Path]FieldResult{},
	}
	if host, err := os.Hostname(); err == nil {
		s.host = host
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = identity.NewResolver(identity.DefaultPolicy(), func() time.Time { return s.clock.Now() })
	}
	if s.hub == nil {
		s.hub = NewHub()
	}

	now := func() time.Time { return s.clock.Now() }
	s.migrator = NewMigrator(st, now, s.logger, s.metrics)
	s.detector = NewDetector(st, s.settings.RecoveryWindow, now, s.logger)

	s.saveT = NewDebouncer("save", s.clock, s.settings.SaveDebounce)
	s.validateT = NewDebouncer("validate", s.clock, s.settings.ValidateDebounce)
	s.scoreT = NewDebouncer("score", s.clock, s.settings.ScoreDebounce)
	s.scanT = NewDebouncer("scan", s.clock, s.settings.SettleDelay)
	s.userScanT = NewDebouncer("user-scan", s.clock, s.settings.SettleDelay)
	s.celebrateT = NewDebouncer("celebrate", s.clock, s.settings.CelebrateFor)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.id = s.ids.Generate()
	s.sub = form.Empty("")
	s.step = form.StepProfile
	s.result = emptyResult(s.step)
	s.key = s.resolveKeyLocked()
	s.written = map[string]bool{}
	return s
}

// Close stops every pending timer. Pending debounced work is dropped; call
// SaveNow or HandleUnload first to keep it.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelTimersLocked()
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) cancelTimersLocked() {
	for _, d := range []*Debouncer{s.saveT, s.validateT, s.scoreT, s.scanT, s.userScanT, s.celebrateT} {
		d.Cancel()
	}
}

// ID returns the session ID recorded in every draft this session writes.
func (s *Session) ID() string {
	return s.id
}

// Key returns the current draft key.
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Step returns the current 1-based step.
func (s *Session) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Submission returns a copy of the submission being edited.
func (s *Session) Submission() form.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub.Clone()
}

// HasUnsavedChanges reports whether edits are waiting to be written.
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsaved
}

// LastSaved returns when the draft was last written, or the zero time.
func (s *Session) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Validation returns the latest debounced step validation result.
func (s *Session) Validation() ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyResult(s.result)
}

// FieldValidation returns the per-keystroke field results.
func (s *Session) FieldValidation() map[form.Path]FieldResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[form.Path]FieldResult, len(s.fieldResults))
	for p, r := range s.fieldResults {
		out[p] = r
	}
	return out
}

// Celebrating reports whether the score celebration flag is set.
func (s *Session) Celebrating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.celebrating
}

// Subscribe streams session events until ctx is done.
func (s *Session) Subscribe(ctx context.Context, buffer int) <-chan Event {
	return s.hub.Subscribe(ctx, buffer)
}

// Mutate sets one field and schedules the deferred work it implies: a
// debounced save, a debounced step validation, a score recomputation for
// scored fields and a key refresh for identity fields. The field is also
// validated immediately. Only unknown paths and wrong value types fail.
func (s *Session) Mutate(ctx context.Context, path form.Path, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if err := form.Set(&s.sub, path, value); err != nil {
		return err
	}
	s.validateFieldLocked(path, value)
	s.changedLocked(ctx, path.IsIdentity(), path.IsScored(), string(path))
	return nil
}

// Update applies fn to the submission as a single edit. Use it for
// structural edits such as removing a list entry.
func (s *Session) Update(ctx context.Context, fn func(*form.Submission)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	fn(&s.sub)
	s.changedLocked(ctx, true, true, "")
	return nil
}

// ValidateField validates value for path without applying it and stores the
// result in the field result map.
func (s *Session) ValidateField(path form.Path, value any) FieldResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateFieldLocked(path, value)
}

func (s *Session) validateFieldLocked(path form.Path, value any) FieldResult {
	if s.fields == nil {
		return FieldResult{}
	}
	errMsg, warning := s.fields.ValidateField(path, value, s.sub)
	res := FieldResult{Error: errMsg, Warning: warning}
	if res == (FieldResult{}) {
		delete(s.fieldResults, path)
	} else {
		s.fieldResults[path] = res
	}
	return res
}

func (s *Session) changedLocked(ctx context.Context, identityChanged, scored bool, path string) {
	s.unsaved = true
	s.publishLocked(EventChanged, map[string]any{"path": path})

	if identityChanged {
		s.refreshKeyLocked(ctx, true)
	}
	s.saveT.Trigger(s.onSaveTimer)
	s.validateT.Trigger(s.onValidateTimer)
	if scored && s.scorer != nil {
		s.scoreT.Trigger(s.onScoreTimer)
	}
}

// ConfirmIdentity pins the identity to one picked from a known-identity
// list, fills the identity fields with it and schedules a scan for that
// user's existing drafts after the settle delay.
func (s *Session) ConfirmIdentity(ctx context.Context, who identity.Confirmed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	s.confirmed = &who
	s.sub.Identity.Name = who.Name
	s.sub.Identity.Phone = who.Phone
	s.changedLocked(ctx, true, false, "identity")
	s.userScanT.Trigger(s.onUserScanTimer)
	return nil
}

func (s *Session) inputsLocked() identity.Inputs {
	return identity.Inputs{Name: s.sub.Identity.Name, Phone: s.sub.Identity.Phone}
}

func (s *Session) resolveKeyLocked() string {
	return s.resolver.ResolveKey(s.inputsLocked(), s.confirmed, s.sub.Period)
}

// refreshKeyLocked recomputes the key. When the key changes and is now
// canonical, drafts under the legacy keys, and under the previous key when it
// describes the same draft, are migrated to it.
func (s *Session) refreshKeyLocked(ctx context.Context, migrate bool) {
	next := s.resolveKeyLocked()
	if next == s.key {
		return
	}
	prev := s.key
	s.key = next
	s.logger.Debug("draft key changed", "from", prev, "to", next)
	s.publishLocked(EventKeyChanged, map[string]any{"from": prev, "to": next})

	if !migrate || !s.resolver.IsStable(s.inputsLocked(), s.confirmed) {
		return
	}

	keys := s.resolver.EnumerateLegacyKeys(s.inputsLocked(), s.confirmed, s.sub.Period)
	for _, k := range s.supersededLocked(prev, next) {
		if !contains(keys, k) {
			keys = append(keys, k)
		}
	}
	for _, r := range s.migrator.MigrateLegacy(ctx, keys) {
		if r.Outcome != OutcomeFailed {
			delete(s.written, r.From)
		}
		if r.Outcome == OutcomeMigrated || r.Outcome == OutcomeDiscarded {
			s.publishLocked(EventMigrated, map[string]any{
				"from":    r.From,
				"to":      r.To,
				"outcome": string(r.Outcome),
			})
		}
	}
}

// supersededLocked returns the keys, besides the legacy variants, whose
// drafts are earlier copies of the draft now keyed next: prev when it is
// provisional or names the same phone and period, and every key this
// session has written. Sorted, next excluded.
func (s *Session) supersededLocked(prev, next string) []string {
	set := make(map[string]bool, len(s.written)+1)
	for k := range s.written {
		set[k] = true
	}
	if identity.IsProvisionalKey(prev) {
		set[prev] = true
	} else if pk, err := identity.Parse(prev); err == nil {
		if nk, err := identity.Parse(next); err == nil && pk.Period == nk.Period && pk.Phone == nk.Phone {
			set[prev] = true
		}
	}
	delete(set, next)

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Session) publishLocked(typ string, data map[string]any) {
	s.hub.Publish(Event{Type: typ, Timestamp: s.clock.Now().UnixMilli(), Data: data})
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func emptyResult(step int) ValidationResult {
	return ValidationResult{Step: step, Errors: map[form.Path]string{}, Warnings: map[form.Path]string{}}
}

func copyResult(r ValidationResult) ValidationResult {
	out := emptyResult(r.Step)
	for p, m := range r.Errors {
		out.Errors[p] = m
	}
	for p, m := range r.Warnings {
		out.Warnings[p] = m
	}
	return out
}
