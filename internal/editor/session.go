// Package editor implements the debounced editing session used by the
// quotation and work-order editors. A session holds one in-memory document,
// applies mutations to it, and coalesces bursts of mutations into a single
// persisted write once the document has been quiet for the configured period.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors reported by a session.
var (
	// ErrVersionConflict is returned by a Saver when the stored document moved
	// past the session's base version. The session surfaces it and never
	// retries automatically.
	ErrVersionConflict = errors.New("editor: version conflict")
	ErrClosed          = errors.New("editor: session closed")
	ErrNotLoaded       = errors.New("editor: document not loaded")
)

// State is the lifecycle phase of a session.
type State int

const (
	StateLoading State = iota
	StateIdle
	StatePendingSave
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StatePendingSave:
		return "pending-save"
	case StateSaving:
		return "saving"
	}
	return "unknown"
}

// Mutation is one named edit applied to the document. Applying any mutation
// marks the session dirty; there is no separately maintained dirty flag.
type Mutation[T any] struct {
	Name  string
	Apply func(*T)
}

// Saver persists a snapshot taken while the session held baseVersion and
// returns the new stored version. It must return ErrVersionConflict (possibly
// wrapped) when the stored version no longer equals baseVersion.
type Saver[T any] func(ctx context.Context, snapshot T, baseVersion int64) (int64, error)

// Session debounces mutations to a single document of type T.
//
// Writes are serialized: if the quiet timer fires while a save is in flight
// the next save is deferred until the first one finishes. A failed save keeps
// the session dirty; non-conflict failures re-arm the quiet timer once, after
// which the session waits for the next mutation or an explicit Flush.
type Session[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	state   State
	doc     T
	version int64

	applied int64 // mutations applied since load
	saved   int64 // applied count covered by the last successful save

	quiet       time.Duration
	saveTimeout time.Duration
	timer       *time.Timer

	save     Saver[T]
	finalize func(*T)
	clone    func(T) T

	onSaved  func(T, int64)
	onError  func(error)
	observer func(outcome string, mutations int)

	closed    bool
	saveAgain bool
	failures  int
}

// Option configures a Session.
type Option[T any] func(*Session[T])

// WithQuietPeriod sets the debounce window (default one second).
func WithQuietPeriod[T any](d time.Duration) Option[T] {
	return func(s *Session[T]) {
		if d > 0 {
			s.quiet = d
		}
	}
}

// WithSaveTimeout bounds each background save (default ten seconds).
func WithSaveTimeout[T any](d time.Duration) Option[T] {
	return func(s *Session[T]) {
		if d > 0 {
			s.saveTimeout = d
		}
	}
}

// WithFinalize installs a hook that computes derived fields (totals,
// normalized collections) on the document immediately before every save.
func WithFinalize[T any](fn func(*T)) Option[T] {
	return func(s *Session[T]) { s.finalize = fn }
}

// WithClone installs a deep-copy used to snapshot the document for a save.
// Without it the snapshot is a shallow copy, which is only safe when
// mutations replace rather than modify reference fields.
func WithClone[T any](fn func(T) T) Option[T] {
	return func(s *Session[T]) { s.clone = fn }
}

// WithOnSaved installs a callback invoked after each successful save with the
// persisted snapshot and its new version.
func WithOnSaved[T any](fn func(T, int64)) Option[T] {
	return func(s *Session[T]) { s.onSaved = fn }
}

// WithOnError installs a callback invoked with every save error, including
// version conflicts.
func WithOnError[T any](fn func(error)) Option[T] {
	return func(s *Session[T]) { s.onError = fn }
}

// WithObserver installs a metrics hook called once per save attempt with the
// outcome ("ok", "conflict" or "error") and the number of mutations the
// attempt covered.
func WithObserver[T any](fn func(outcome string, mutations int)) Option[T] {
	return func(s *Session[T]) { s.observer = fn }
}

// NewSession returns a session in the Loading state. It accepts no mutations
// until Seed provides the loaded document.
func NewSession[T any](save Saver[T], opts ...Option[T]) *Session[T] {
	s := &Session[T]{
		state:       StateLoading,
		quiet:       time.Second,
		saveTimeout: 10 * time.Second,
		save:        save,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed installs the loaded document and its stored version and moves the
// session to Idle. Seeding never arms the quiet timer and resets the dirty
// state, so a (re)load is indistinguishable from a fresh session.
func (s *Session[T]) Seed(doc T, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state == StateSaving {
		return fmt.Errorf("editor: seed while saving")
	}
	s.stopTimerLocked()
	s.doc = doc
	s.version = version
	s.applied = 0
	s.saved = 0
	s.failures = 0
	s.saveAgain = false
	s.state = StateIdle
	return nil
}

// Mutate applies one mutation and re-arms the quiet timer. Mutations are
// rejected before Seed and after Close.
func (s *Session[T]) Mutate(m Mutation[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state == StateLoading {
		return ErrNotLoaded
	}
	m.Apply(&s.doc)
	s.applied++
	s.failures = 0
	if s.state != StateSaving {
		s.state = StatePendingSave
	}
	s.armTimerLocked()
	return nil
}

// Dirty reports whether mutations applied since load are not yet covered by a
// successful save.
func (s *Session[T]) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied > s.saved
}

// State returns the current lifecycle phase.
func (s *Session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the current document and its base version.
func (s *Session[T]) Snapshot() (T, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), s.version
}

// Flush saves immediately when the session is dirty, waiting for any
// in-flight background save to finish first.
func (s *Session[T]) Flush(ctx context.Context) error {
	s.mu.Lock()
	for s.state == StateSaving {
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		s.cond.Wait()
	}
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StateLoading {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if s.applied <= s.saved {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()
	snapshot, base, mark := s.beginSaveLocked()
	s.mu.Unlock()

	version, err := s.save(ctx, snapshot, base)
	s.finishSave(mark, version, err)
	return err
}

// Close cancels any pending save and stops the session. The result of an
// in-flight save is discarded: its version is not applied and no callbacks
// fire after Close returns.
func (s *Session[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.cond.Broadcast()
}

func (s *Session[T]) snapshotLocked() T {
	if s.clone != nil {
		return s.clone(s.doc)
	}
	return s.doc
}

func (s *Session[T]) armTimerLocked() {
	if s.timer == nil {
		s.timer = time.AfterFunc(s.quiet, s.timerFired)
		return
	}
	s.timer.Reset(s.quiet)
}

func (s *Session[T]) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Session[T]) timerFired() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.applied <= s.saved {
		// A flush raced the timer and already covered these mutations.
		if s.state == StatePendingSave {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return
	}
	if s.state == StateSaving {
		// A save is in flight; run another one as soon as it finishes.
		s.saveAgain = true
		s.mu.Unlock()
		return
	}
	snapshot, base, mark := s.beginSaveLocked()
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
		defer cancel()
		version, err := s.save(ctx, snapshot, base)
		s.finishSave(mark, version, err)
	}()
}

// beginSaveLocked finalizes the document, snapshots it and enters Saving.
func (s *Session[T]) beginSaveLocked() (snapshot T, base int64, mark int64) {
	if s.finalize != nil {
		s.finalize(&s.doc)
	}
	s.state = StateSaving
	return s.snapshotLocked(), s.version, s.applied
}

func (s *Session[T]) finishSave(mark, version int64, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	var (
		onSaved  func(T, int64)
		onError  func(error)
		observer func(string, int)
		snapshot T
		covered  = int(mark - s.saved)
	)
	observer = s.observer

	outcome := "ok"
	switch {
	case err == nil:
		s.version = version
		if mark > s.saved {
			s.saved = mark
		}
		s.failures = 0
		onSaved = s.onSaved
		snapshot = s.snapshotLocked()
	case errors.Is(err, ErrVersionConflict):
		outcome = "conflict"
		s.failures = 0
		onError = s.onError
	default:
		outcome = "error"
		s.failures++
		onError = s.onError
		if s.failures == 1 {
			// One automatic retry per failure streak, then wait for the next
			// mutation or an explicit Flush.
			s.armTimerLocked()
		}
	}

	dirty := s.applied > s.saved
	switch {
	case err == nil && (s.saveAgain || dirty):
		s.state = StatePendingSave
		s.armTimerLocked()
	case outcome == "error" && s.failures == 1:
		// Timer re-armed above.
		s.state = StatePendingSave
	default:
		// Clean, or dirty with no automatic retry (conflict / repeated
		// failure): wait for the next mutation or an explicit Flush.
		s.state = StateIdle
	}
	s.saveAgain = false
	newVersion := s.version
	s.cond.Broadcast()
	s.mu.Unlock()

	if observer != nil {
		observer(outcome, covered)
	}
	if err == nil && onSaved != nil {
		onSaved(snapshot, newVersion)
	}
	if err != nil && onError != nil {
		onError(err)
	}
}
