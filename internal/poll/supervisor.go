package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/rollAuth/internal/provider"
	"github.com/MrEthical07/rollAuth/internal/stores"
)

const (
	DefaultMaxAttempts = 15
	DefaultInterval    = 4 * time.Second
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("poll supervisor closed")

// Outcome is the terminal state of one poll task.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota + 1
	OutcomeCancelled
	OutcomeExhausted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exchanger trades a handshake token for a session token.
type Exchanger interface {
	Exchange(ctx context.Context, handshakeToken string) (string, error)
}

// Promoter persists a session token if handshakeToken is still the pending one.
type Promoter interface {
	Promote(ctx context.Context, userID, handshakeToken, sessionToken string) error
}

// ProfileFetcher loads the holder profile for a freshly promoted session.
type ProfileFetcher interface {
	Profile(ctx context.Context, sessionToken string) (*provider.Profile, error)
}

// Config controls polling cadence. A zero Interval polls back to back.
type Config struct {
	MaxAttempts int
	Interval    time.Duration
	Logger      *slog.Logger
}

// Deps are the collaborators every task uses.
type Deps struct {
	Exchanger Exchanger
	Promoter  Promoter
	Profiles  ProfileFetcher
}

// Hooks observe task progress. Both are optional and must not block.
type Hooks struct {
	OnAttempt func(userID string, attempt int, elapsed time.Duration)
	OnFinish  func(userID string, outcome Outcome, attempts int)
}

// Callbacks are the per-task terminal handlers. At most one fires, and none
// fires for a cancelled task. A nil profile on success means the profile
// fetch after promotion failed.
type Callbacks struct {
	OnSuccess   func(ctx context.Context, sessionToken string, profile *provider.Profile)
	OnExhausted func(ctx context.Context)
	OnFailed    func(ctx context.Context, err error)
}

type task struct {
	id        string
	userID    string
	handshake string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Supervisor runs at most one poll task per user.
type Supervisor struct {
	cfg    Config
	deps   Deps
	hooks  Hooks
	logger *slog.Logger

	root       context.Context
	cancelRoot context.CancelFunc

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
	wg     sync.WaitGroup

	lockMu sync.Mutex
	locks  map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func New(cfg Config, deps Deps, hooks Hooks) *Supervisor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:        cfg,
		deps:       deps,
		hooks:      hooks,
		logger:     logger,
		root:       root,
		cancelRoot: cancel,
		tasks:      make(map[string]*task),
		locks:      make(map[string]*userLock),
	}
}

// LockUser serializes callers working on userID's pending handshake and task
// registration. The returned func releases the lock and must be called once.
func (s *Supervisor) LockUser(userID string) (unlock func()) {
	s.lockMu.Lock()
	l := s.locks[userID]
	if l == nil {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.lockMu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.lockMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, userID)
			}
			s.lockMu.Unlock()
		})
	}
}

// Start registers a poll task for userID, superseding any live one. The new
// task does not exchange until the superseded task has terminated.
// It returns the task's generation id.
func (s *Supervisor) Start(userID, handshakeToken string, cb Callbacks) (string, error) {
	ctx, cancel := context.WithCancel(s.root)
	t := &task{
		id:        uuid.NewString(),
		userID:    userID,
		handshake: handshakeToken,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return "", ErrClosed
	}
	prev := s.tasks[userID]
	s.tasks[userID] = t
	s.wg.Add(1)
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		s.logger.Debug("poll task superseded", "user", userID, "task", prev.id)
	}

	go s.run(ctx, t, prev, cb)
	return t.id, nil
}

// Cancel stops and deregisters the live task for userID. It reports whether
// a task was registered. The task may still be finishing an in-flight
// exchange when Cancel returns.
func (s *Supervisor) Cancel(userID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[userID]
	if ok {
		delete(s.tasks, userID)
	}
	s.mu.Unlock()

	if ok {
		t.cancel()
	}
	return ok
}

// Active reports whether userID has a registered task.
func (s *Supervisor) Active(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[userID]
	return ok
}

// Len returns the number of registered tasks.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Close cancels every task and waits for all of them to return.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.closed = true
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	s.cancelRoot()
	s.wg.Wait()
}

func (s *Supervisor) run(ctx context.Context, t *task, prev *task, cb Callbacks) {
	defer s.wg.Done()
	defer close(t.done)
	defer t.cancel()

	// prev is already cancelled; this only waits out its in-flight exchange.
	if prev != nil {
		<-prev.done
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			s.finish(ctx, t, OutcomeCancelled, attempt-1, cb, nil, "", nil)
			return
		}

		started := time.Now()
		token, err := s.deps.Exchanger.Exchange(ctx, t.handshake)
		if s.hooks.OnAttempt != nil {
			s.hooks.OnAttempt(t.userID, attempt, time.Since(started))
		}

		// A token that arrives after cancellation belongs to a superseded task.
		if ctx.Err() != nil {
			s.finish(ctx, t, OutcomeCancelled, attempt, cb, nil, "", nil)
			return
		}
		if err == nil && token != "" {
			s.promote(ctx, t, token, attempt, cb)
			return
		}

		if attempt == s.cfg.MaxAttempts || s.cfg.Interval == 0 {
			continue
		}
		if timer == nil {
			timer = time.NewTimer(s.cfg.Interval)
		} else {
			timer.Reset(s.cfg.Interval)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			s.finish(ctx, t, OutcomeCancelled, attempt, cb, nil, "", nil)
			return
		}
	}

	s.finish(ctx, t, OutcomeExhausted, s.cfg.MaxAttempts, cb, nil, "", nil)
}

func (s *Supervisor) promote(ctx context.Context, t *task, sessionToken string, attempts int, cb Callbacks) {
	// Promotion and the profile read run detached so a cancel landing now
	// cannot interrupt the store write. finish still reports it as cancelled.
	bg := context.WithoutCancel(ctx)

	err := s.deps.Promoter.Promote(bg, t.userID, t.handshake, sessionToken)
	switch {
	case errors.Is(err, stores.ErrHandshakeSuperseded):
		s.finish(ctx, t, OutcomeCancelled, attempts, cb, nil, "", nil)
		return
	case err != nil:
		s.finish(ctx, t, OutcomeFailed, attempts, cb, err, "", nil)
		return
	}

	var profile *provider.Profile
	if s.deps.Profiles != nil {
		p, perr := s.deps.Profiles.Profile(bg, sessionToken)
		if perr != nil {
			s.logger.Warn("profile fetch after promotion failed", "user", t.userID, "err", perr)
		} else {
			profile = p
		}
	}
	s.finish(ctx, t, OutcomeSucceeded, attempts, cb, nil, sessionToken, profile)
}

// finish deregisters t and fires the callback for outcome. Any outcome of a
// task that was already superseded or cancelled is reported as cancelled, so
// a promotion racing a logout never announces the session.
func (s *Supervisor) finish(
	ctx context.Context,
	t *task,
	outcome Outcome,
	attempts int,
	cb Callbacks,
	cause error,
	sessionToken string,
	profile *provider.Profile,
) {
	s.mu.Lock()
	current := s.tasks[t.userID] == t
	if current {
		delete(s.tasks, t.userID)
	}
	s.mu.Unlock()

	if outcome != OutcomeCancelled && (!current || ctx.Err() != nil) {
		outcome = OutcomeCancelled
	}

	s.logger.Debug("poll task finished",
		"user", t.userID,
		"task", t.id,
		"outcome", outcome.String(),
		"attempts", attempts,
	)
	defer func() {
		if s.hooks.OnFinish != nil {
			s.hooks.OnFinish(t.userID, outcome, attempts)
		}
	}()

	cbCtx := context.WithoutCancel(ctx)
	switch outcome {
	case OutcomeSucceeded:
		if cb.OnSuccess != nil {
			cb.OnSuccess(cbCtx, sessionToken, profile)
		}
	case OutcomeExhausted:
		if cb.OnExhausted != nil {
			cb.OnExhausted(cbCtx)
		}
	case OutcomeFailed:
		if cb.OnFailed != nil {
			cb.OnFailed(cbCtx, cause)
		}
	}
}
