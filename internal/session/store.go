package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blikh/co2-dashboard/internal/metrics"
)

// DefaultVerifyTimeout bounds a single verification round trip.
const DefaultVerifyTimeout = 10 * time.Second

// Verifier exchanges a token for the identity it belongs to. Any error
// means the token must be discarded.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}

// Options configures a Store.
type Options struct {
	Storage  TokenStorage
	Verifier Verifier
	// Timeout bounds each verification; DefaultVerifyTimeout when zero.
	Timeout time.Duration
	Logger  *slog.Logger
	// OnChange, if set, is called with the new state after every mutation,
	// outside the store lock.
	OnChange func(State)
}

// Store is the single owner of the session state. All mutations go through
// Dispatch or through the verification it starts.
type Store struct {
	ctx      context.Context
	storage  TokenStorage
	verifier Verifier
	timeout  time.Duration
	logger   *slog.Logger
	onChange func(State)

	mu      sync.Mutex
	state   State
	gen     uint64
	cancel  context.CancelFunc
	pending chan struct{}
}

// New creates a Store from the persisted token. A non-empty token starts
// verification immediately. Verifications run under ctx; cancelling it
// abandons them without touching the session.
func New(ctx context.Context, opts Options) *Store {
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage("")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultVerifyTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		ctx:      ctx,
		storage:  opts.Storage,
		verifier: opts.Verifier,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		onChange: opts.OnChange,
	}

	token, err := s.storage.Load()
	if err != nil {
		s.logger.Warn("session: failed to load persisted token", "err", err)
		token = ""
	}

	s.mu.Lock()
	s.state.Token = token
	if token != "" {
		s.state.Status = PendingVerification
		s.startVerificationLocked()
	}
	s.mu.Unlock()
	return s
}

// State returns a snapshot of the current session.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a to the session. Passing anything other than SetUser
// or Logout is a programming error and panics.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	switch a := a.(type) {
	case SetUser:
		s.setUserLocked(a)
	case *SetUser:
		s.setUserLocked(*a)
	case Logout, *Logout:
		s.logoutLocked()
	default:
		s.mu.Unlock()
		panic(fmt.Sprintf("session: unknown action %T", a))
	}
	st := s.state
	s.mu.Unlock()
	s.notify(st)
}

// Wait blocks until no verification is in flight or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		p := s.pending
		s.mu.Unlock()
		if p == nil {
			return nil
		}
		select {
		case <-p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close abandons any in-flight verification.
func (s *Store) Close() {
	s.mu.Lock()
	s.invalidateLocked()
	s.mu.Unlock()
}

func (s *Store) setUserLocked(a SetUser) {
	prev := s.state.Token
	s.state.merge(a)
	if a.JWT != "" && a.JWT != prev {
		s.state.Status = PendingVerification
		s.startVerificationLocked()
	}
}

func (s *Store) logoutLocked() {
	s.invalidateLocked()
	s.resetLocked()
	metrics.SessionLogouts.Inc()
	s.logger.Debug("session: logged out")
}

// resetLocked returns to the initial state and drops the persisted token.
func (s *Store) resetLocked() {
	s.state = State{}
	if err := s.storage.Remove(); err != nil {
		s.logger.Error("session: failed to remove persisted token", "err", err)
	}
}

// invalidateLocked cancels the in-flight verification and makes sure its
// result, if it still arrives, is discarded.
func (s *Store) invalidateLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pending = nil
}

func (s *Store) startVerificationLocked() {
	s.invalidateLocked()
	gen := s.gen
	token := s.state.Token

	if s.verifier == nil {
		s.logger.Error("session: no verifier configured, dropping token", "token", Fingerprint(token))
		metrics.SessionVerifications.WithLabelValues("rejected").Inc()
		s.resetLocked()
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	done := make(chan struct{})
	s.cancel = cancel
	s.pending = done

	go s.verify(ctx, cancel, gen, token, done)
}

func (s *Store) verify(ctx context.Context, cancel context.CancelFunc, gen uint64, token string, done chan struct{}) {
	defer close(done)
	defer cancel()

	start := time.Now()
	id, err := s.verifier.Verify(ctx, token)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		metrics.SessionVerifications.WithLabelValues("stale").Inc()
		s.logger.Debug("session: discarding stale verification", "token", Fingerprint(token))
		return
	}
	s.cancel = nil
	s.pending = nil

	if s.ctx.Err() != nil {
		s.mu.Unlock()
		metrics.SessionVerifications.WithLabelValues("aborted").Inc()
		s.logger.Debug("session: verification abandoned", "token", Fingerprint(token))
		return
	}

	if err != nil {
		s.resetLocked()
		st := s.state
		s.mu.Unlock()
		metrics.SessionVerifications.WithLabelValues("rejected").Inc()
		s.logger.Info("session: verification failed, logging out",
			"token", Fingerprint(token), "duration", time.Since(start), "err", err)
		s.notify(st)
		return
	}

	s.state.merge(SetUser{
		TelegramID: id.TelegramID,
		UserID:     id.UserID,
		UserName:   id.UserName,
		UserNick:   id.UserNick,
		JWT:        id.JWT,
	})
	s.state.Status = Authenticated
	if err := s.storage.Save(s.state.Token); err != nil {
		s.logger.Error("session: failed to persist token", "err", err)
	}
	st := s.state
	s.mu.Unlock()

	metrics.SessionVerifications.WithLabelValues("ok").Inc()
	s.logger.Debug("session: verified",
		"user_id", st.UserID, "user_name", st.UserName, "token", Fingerprint(st.Token), "duration", time.Since(start))
	s.notify(st)
}

func (s *Store) notify(st State) {
	if s.onChange != nil {
		s.onChange(st)
	}
}
