package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"
)

// AuthEvent names a change to the session held by Auth.
type AuthEvent string

const (
	SignedIn       AuthEvent = "SIGNED_IN"
	SignedOut      AuthEvent = "SIGNED_OUT"
	TokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	UserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthListener receives session changes. The session is nil after sign-out.
type AuthListener func(event AuthEvent, session *Session)

// SessionStorage persists the session between process runs. LoadSession
// returns ErrNoSession when nothing is stored.
type SessionStorage interface {
	LoadSession(ctx context.Context) (*Session, error)
	SaveSession(ctx context.Context, s *Session) error
	DeleteSession(ctx context.Context) error
}

const (
	// DefaultRefreshMargin is how long before expiry a token is refreshed.
	DefaultRefreshMargin = 90 * time.Second

	// DefaultRefreshTick is how often the background refresher looks at the
	// session.
	DefaultRefreshTick = 30 * time.Second
)

// Auth holds the signed-in session for a Client: it persists it, refreshes it
// ahead of expiry and notifies listeners of every change.
//
// Listeners are called from a single dispatcher goroutine in the order events
// were emitted, never while Auth holds a lock. Start must be called for
// listeners and background refresh to run.
type Auth struct {
	client  *Client
	storage SessionStorage
	logger  *slog.Logger

	RefreshMargin time.Duration
	RefreshTick   time.Duration

	mu      sync.RWMutex
	session *Session
	loaded  bool

	refreshMu sync.Mutex

	lmu       sync.Mutex
	listeners map[uint64]AuthListener
	nextID    uint64
	queue     []queuedEvent
	wake      chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

type queuedEvent struct {
	event   AuthEvent
	session *Session
}

// NewAuth creates a session holder. storage may be nil, in which case the
// session only lives in memory.
func NewAuth(client *Client, storage SessionStorage, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auth{
		client:        client,
		storage:       storage,
		logger:        logger,
		RefreshMargin: DefaultRefreshMargin,
		RefreshTick:   DefaultRefreshTick,
		listeners:     make(map[uint64]AuthListener),
		wake:          make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start launches the event dispatcher and the background token refresher.
func (a *Auth) Start() {
	a.startOnce.Do(func() {
		go a.run()
		a.logger.Debug("supabase auth started", "refresh_tick", a.RefreshTick)
	})
}

// Stop shuts the background workers down and waits for them. Queued events
// that were not yet delivered are dropped.
func (a *Auth) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		started := true
		a.startOnce.Do(func() { started = false })
		if started {
			<-a.doneCh
		}
	})
}

// OnChange registers fn and returns a function that removes it. The returned
// function is safe to call more than once.
func (a *Auth) OnChange(fn AuthListener) func() {
	a.lmu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.lmu.Lock()
			delete(a.listeners, id)
			a.lmu.Unlock()
		})
	}
}

// SignUp registers an identity. The session is nil when the project requires
// email confirmation before sign-in.
func (a *Auth) SignUp(ctx context.Context, req SignUpRequest) (*Session, *User, error) {
	tr, user, err := a.client.SignUp(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if tr == nil {
		return nil, user, nil
	}

	s := newSession(tr, time.Now())
	if err := a.setSession(ctx, s, SignedIn); err != nil {
		return nil, nil, err
	}
	return copySession(s), &s.User, nil
}

// SignInWithPassword authenticates with email and password.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	tr, err := a.client.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s := newSession(tr, time.Now())
	if err := a.setSession(ctx, s, SignedIn); err != nil {
		return nil, err
	}
	return copySession(s), nil
}

// SignOut revokes the session on the server and always forgets it locally.
// The server error, if any, is returned after local state is cleared.
func (a *Auth) SignOut(ctx context.Context) error {
	s, err := a.current(ctx)
	if err != nil {
		a.logger.Warn("failed to load session before sign-out", "error", err)
	}
	if s == nil {
		return nil
	}

	logoutErr := a.client.Logout(ctx, s.AccessToken)
	// A session the server no longer knows about is already signed out.
	if StatusOf(logoutErr) == http.StatusUnauthorized || StatusOf(logoutErr) == http.StatusNotFound {
		logoutErr = nil
	}

	if err := a.clearSession(ctx); err != nil {
		return err
	}
	return logoutErr
}

// Session returns the current session, refreshing it first when it is about to
// expire. It returns (nil, nil) when nobody is signed in.
func (a *Auth) Session(ctx context.Context) (*Session, error) {
	s, err := a.current(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.ExpiresWithin(time.Now(), a.RefreshMargin) {
		return copySession(s), nil
	}

	s, err = a.refresh(ctx, s)
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return copySession(s), nil
}

// User fetches the identity for the current session from the server. An
// access token the server rejects clears the session and yields (nil, nil).
func (a *Auth) User(ctx context.Context) (*User, error) {
	s, err := a.Session(ctx)
	if err != nil || s == nil {
		return nil, err
	}

	user, err := a.client.GetUser(ctx, s.AccessToken)
	if StatusOf(err) == http.StatusUnauthorized || StatusOf(err) == http.StatusForbidden {
		a.logger.Info("server rejected access token, clearing session")
		if clearErr := a.clearSession(ctx); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AccessToken returns a valid access token, or "" when signed out.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	s, err := a.Session(ctx)
	if err != nil || s == nil {
		return "", err
	}
	return s.AccessToken, nil
}

// Snapshot returns the in-memory session without loading or refreshing it.
func (a *Auth) Snapshot() *Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return copySession(a.session)
}

// NotifyUserUpdated emits USER_UPDATED for the current session, if any.
func (a *Auth) NotifyUserUpdated() {
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()
	if s != nil {
		a.emit(UserUpdated, s)
	}
}

// current returns the in-memory session, loading the persisted one on first use.
func (a *Auth) current(ctx context.Context) (*Session, error) {
	a.mu.RLock()
	if a.loaded {
		s := a.session
		a.mu.RUnlock()
		return s, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return a.session, nil
	}

	if a.storage != nil {
		s, err := a.storage.LoadSession(ctx)
		switch {
		case errors.Is(err, ErrNoSession):
		case err != nil:
			return nil, fmt.Errorf("failed to load session: %w", err)
		default:
			a.session = s
		}
	}
	a.loaded = true
	return a.session, nil
}

// refresh rotates the token pair. Concurrent callers share one refresh.
func (a *Auth) refresh(ctx context.Context, stale *Session) (*Session, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()
	if s == nil {
		return nil, ErrNoSession
	}
	if s.AccessToken != stale.AccessToken && !s.ExpiresWithin(time.Now(), a.RefreshMargin) {
		return s, nil
	}

	tr, err := a.client.RefreshGrant(ctx, s.RefreshToken)
	if err != nil {
		if isRejectedRefresh(err) {
			a.logger.Info("refresh token rejected, signing out", "error", err)
			if clearErr := a.clearSession(ctx); clearErr != nil {
				return nil, clearErr
			}
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	next := newSession(tr, time.Now())
	if next.User.ID == "" {
		next.User = s.User
	}
	if err := a.setSession(ctx, next, TokenRefreshed); err != nil {
		return nil, err
	}
	return next, nil
}

func isRejectedRefresh(err error) bool {
	status := StatusOf(err)
	return status == http.StatusBadRequest || status == http.StatusUnauthorized ||
		HasCode(err, CodeSessionNotFound)
}

func (a *Auth) setSession(ctx context.Context, s *Session, event AuthEvent) error {
	if a.storage != nil {
		if err := a.storage.SaveSession(ctx, s); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
	}

	a.mu.Lock()
	a.session = s
	a.loaded = true
	a.mu.Unlock()

	a.emit(event, s)
	return nil
}

func (a *Auth) clearSession(ctx context.Context) error {
	a.mu.Lock()
	had := a.session != nil
	a.session = nil
	a.loaded = true
	a.mu.Unlock()

	if a.storage != nil {
		if err := a.storage.DeleteSession(ctx); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
	}
	if had {
		a.emit(SignedOut, nil)
	}
	return nil
}

func (a *Auth) emit(event AuthEvent, s *Session) {
	a.lmu.Lock()
	a.queue = append(a.queue, queuedEvent{event: event, session: copySession(s)})
	a.lmu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// run is the background worker: it delivers queued events and refreshes the
// session on every tick.
func (a *Auth) run() {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.RefreshTick)
	defer ticker.Stop()

	for {
		select {
		case <-a.wake:
			a.dispatch()
		case <-ticker.C:
			a.autoRefresh()
		case <-a.stopCh:
			return
		}
	}
}

func (a *Auth) dispatch() {
	for {
		a.lmu.Lock()
		if len(a.queue) == 0 {
			a.lmu.Unlock()
			return
		}
		ev := a.queue[0]
		a.queue = a.queue[1:]
		listeners := make([]AuthListener, 0, len(a.listeners))
		ids := make([]uint64, 0, len(a.listeners))
		for id := range a.listeners {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			listeners = append(listeners, a.listeners[id])
		}
		a.lmu.Unlock()

		for _, fn := range listeners {
			fn(ev.event, copySession(ev.session))
		}
	}
}

func (a *Auth) autoRefresh() {
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()
	if s == nil || !s.ExpiresWithin(time.Now(), a.RefreshMargin) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.client.HTTPClient.Timeout)
	defer cancel()

	if _, err := a.refresh(ctx, s); err != nil && !errors.Is(err, ErrNoSession) {
		a.logger.Warn("background token refresh failed", "error", err)
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
