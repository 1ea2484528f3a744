// Package session owns the authoritative session state of a running
// dashboard: it drives sign-up, sign-in, sign-out and refresh against the
// backend gateway, falls back to a local demo mode when no backend is
// configured, and folds asynchronous auth changes into the same state.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/internal/auth/form"
	"github.com/scrum0/scrum0/internal/auth/gateway"
	"github.com/scrum0/scrum0/pkg/idx"
	"github.com/scrum0/scrum0/pkg/slogx"
)

var (
	// ErrOperationInProgress rejects a mutating call made while another one
	// is still running. The rejected call does not touch state.
	ErrOperationInProgress = errors.New("session: operation in progress")

	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session: controller closed")
)

const demoFullName = "Demo User"

// ConnectionChecker reports backend connectivity. *health.Monitor implements it.
type ConnectionChecker interface {
	Check(ctx context.Context) domain.ConnectionStatus
}

// Controller is safe for concurrent use. Gateway I/O never runs under a lock.
type Controller struct {
	gw      gateway.Gateway
	checker ConnectionChecker
	store   *Store
	logger  *slog.Logger

	// Now is the clock used for demo profiles. Tests may replace it.
	Now func() time.Time

	busy   atomic.Bool
	demo   atomic.Bool
	closed atomic.Bool

	mu          sync.Mutex
	started     bool
	unsubscribe func()
}

func NewController(gw gateway.Gateway, checker ConnectionChecker, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		gw:      gw,
		checker: checker,
		store:   NewStore(),
		logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// State returns a copy of the current session state.
func (c *Controller) State() State { return c.store.State() }

// Subscribe registers fn for every state change.
func (c *Controller) Subscribe(fn Observer) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// DemoMode reports whether the last connection check found no backend
// configuration.
func (c *Controller) DemoMode() bool { return c.demo.Load() }

// Init registers the auth-change listener, checks the backend connection and
// hydrates the session. Calling it again is a no-op.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	if c.closed.Load() {
		c.mu.Unlock()
		return ErrClosed
	}
	c.started = true
	c.unsubscribe = c.gw.OnAuthChange(c.reconcile)
	c.mu.Unlock()

	if !c.acquire() {
		return ErrOperationInProgress
	}
	defer c.release()

	c.store.set(withLoading(true), withError(""))

	status := c.check(ctx)
	switch {
	case !status.Configured:
		c.logger.Warn("backend not configured, running in demo mode")
		c.store.set(withLoading(false))
		return nil
	case !status.Connected:
		c.logger.Error("backend unreachable at startup", "error", status.Error)
		c.store.set(withLoading(false), withError(status.Error))
		return domain.NewError(domain.KindConnection, status.Error, nil)
	}

	return c.hydrate(ctx)
}

// SignUp validates in and registers a new account. Without a configured
// backend the profile is synthesized locally.
func (c *Controller) SignUp(ctx context.Context, in domain.SignUpInput) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.acquire() {
		return ErrOperationInProgress
	}
	defer c.release()

	in, err := form.SignUp(in)
	if err != nil {
		return c.fail(err)
	}

	c.store.set(withLoading(true), withError(""))

	if err := c.requireBackend(ctx); err != nil {
		return c.fail(err)
	}
	if c.demo.Load() {
		p := c.demoProfile(in.Email, in.Username, in.FullName)
		c.logger.Info("demo signup", "username", p.Username)
		c.store.set(withUser(&p), withLoading(false))
		return nil
	}

	s, err := c.gw.SignUp(ctx, in)
	if err != nil {
		c.logger.Warn("signup failed", slogx.Email(in.Email), "kind", domain.KindOf(err), "error", err)
		return c.fail(err)
	}

	c.logger.Info("signed up", "user_id", s.Profile.ID)
	c.store.set(withUser(&s.Profile), withLoading(false), withError(""))
	return nil
}

// SignIn validates cred and authenticates. Without a configured backend the
// profile is synthesized from the email's local part.
func (c *Controller) SignIn(ctx context.Context, cred domain.Credential) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.acquire() {
		return ErrOperationInProgress
	}
	defer c.release()

	cred, err := form.SignIn(cred)
	if err != nil {
		return c.fail(err)
	}

	c.store.set(withLoading(true), withError(""))

	if err := c.requireBackend(ctx); err != nil {
		return c.fail(err)
	}
	if c.demo.Load() {
		local, _, _ := strings.Cut(cred.Email, "@")
		p := c.demoProfile(cred.Email, form.NormalizeUsername(local), demoFullName)
		c.logger.Info("demo signin", "username", p.Username)
		c.store.set(withUser(&p), withLoading(false))
		return nil
	}

	s, err := c.gw.SignIn(ctx, cred)
	if err != nil {
		c.logger.Warn("signin failed", slogx.Email(cred.Email), "kind", domain.KindOf(err), "error", err)
		return c.fail(err)
	}

	c.logger.Info("signed in", "user_id", s.Profile.ID)
	c.store.set(withUser(&s.Profile), withLoading(false), withError(""))
	return nil
}

// SignOut always ends with no user and no error. Backend failures are logged.
func (c *Controller) SignOut(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.acquire() {
		return ErrOperationInProgress
	}
	defer c.release()

	c.store.set(withLoading(true))

	if err := c.gw.SignOut(ctx); err != nil {
		c.logger.Warn("backend signout failed, clearing local session anyway", "error", err)
	}

	c.store.set(withUser(nil), withLoading(false), withError(""))
	return nil
}

// Refresh re-reads the backend session. A failed read keeps the current user
// and records the error; only an explicit absence signs the user out.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.acquire() {
		return ErrOperationInProgress
	}
	defer c.release()

	if c.demo.Load() {
		// Demo sessions exist only in memory; there is nothing to re-read.
		c.store.set(withLoading(false))
		return nil
	}

	c.store.set(withLoading(true))
	return c.hydrate(ctx)
}

// UpdateProfile changes the signed-in user's profile.
func (c *Controller) UpdateProfile(ctx context.Context, u domain.ProfileUpdate) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.acquire() {
		return ErrOperationInProgress
	}
	defer c.release()

	current := c.store.State().User
	if current == nil {
		return ErrNotAuthenticated
	}

	u, err := form.ProfileUpdate(u)
	if err != nil {
		return c.fail(err)
	}
	if u.IsEmpty() {
		return nil
	}

	c.store.set(withLoading(true), withError(""))

	if c.demo.Load() {
		p := u.Apply(*current, c.Now())
		c.store.set(withUser(&p), withLoading(false))
		return nil
	}

	if u.Username != nil && *u.Username != current.Username {
		available, err := c.gw.UsernameAvailable(ctx, *u.Username)
		if err != nil {
			return c.fail(err)
		}
		if !available {
			return c.fail(domain.NewError(domain.KindConflict, domain.MsgUsernameTaken, nil))
		}
	}

	p, err := c.gw.UpdateProfile(ctx, current.ID, u)
	if err != nil {
		c.logger.Warn("profile update failed", "user_id", current.ID, "kind", domain.KindOf(err), "error", err)
		return c.fail(err)
	}

	c.store.set(withUser(&p), withLoading(false))
	return nil
}

// CheckConnection runs the connection check and records the result. A
// backend that is configured but down sets the state error; recovery clears
// an error that came from an earlier failed check.
func (c *Controller) CheckConnection(ctx context.Context) domain.ConnectionStatus {
	prev := c.store.State()
	status := c.check(ctx)

	switch {
	case status.Configured && !status.Connected:
		c.store.set(withError(status.Error))
	case status.Connected && prev.Connection != nil && prev.Error != "" && prev.Error == prev.Connection.Error:
		c.store.set(withError(""))
	}
	return status
}

// Close releases the auth-change subscription. It is safe to call more than
// once; state stays readable afterwards.
func (c *Controller) Close() {
	if c.closed.Swap(true) {
		return
	}

	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// reconcile applies an asynchronous auth change. It shares the refresh
// semantics and is never rejected by an in-flight call.
func (c *Controller) reconcile(change domain.AuthChange) {
	if c.closed.Load() || c.demo.Load() {
		return
	}

	c.logger.Info("auth state changed", "event", change.Event, "has_session", change.Session != nil)

	switch {
	case change.Err != nil:
		c.logger.Error("failed to resolve session after auth change", "event", change.Event, "error", change.Err)
		c.store.set(withLoading(false), withError(domain.UserMessage(change.Err)))
	case change.Session != nil:
		c.store.set(withUser(&change.Session.Profile), withLoading(false), withError(""))
	case c.store.State().User != nil:
		c.store.set(withUser(nil), withLoading(false), withError(""))
	}
}

// hydrate loads the backend session into state. Callers hold the busy flag.
func (c *Controller) hydrate(ctx context.Context) error {
	s, err := c.gw.CurrentSession(ctx)
	switch {
	case err != nil:
		c.logger.Error("failed to load session", "kind", domain.KindOf(err), "error", err)
		c.store.set(withLoading(false), withError(domain.UserMessage(err)))
		return err
	case s == nil:
		c.store.set(withUser(nil), withLoading(false), withError(""))
		return nil
	default:
		c.store.set(withUser(&s.Profile), withLoading(false), withError(""))
		return nil
	}
}

// requireBackend decides between demo and live mode. A backend last seen
// down is checked again so a recovered one is used straight away.
func (c *Controller) requireBackend(ctx context.Context) error {
	status := c.store.State().Connection
	if status == nil || (status.Configured && !status.Connected) {
		s := c.check(ctx)
		status = &s
	}
	if status.Configured && !status.Connected {
		return domain.NewError(domain.KindConnection, status.Error, nil)
	}
	return nil
}

func (c *Controller) check(ctx context.Context) domain.ConnectionStatus {
	status := c.checker.Check(ctx)
	c.demo.Store(!status.Configured)
	c.store.set(withConnection(status))
	return status
}

// fail records err in state and returns it.
func (c *Controller) fail(err error) error {
	c.store.set(withLoading(false), withError(domain.UserMessage(err)))
	return err
}

func (c *Controller) demoProfile(email, username, fullName string) domain.Profile {
	now := c.Now()
	return domain.Profile{
		ID:        idx.NewAt(now).String(),
		Email:     email,
		Username:  username,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Controller) acquire() bool { return c.busy.CompareAndSwap(false, true) }
func (c *Controller) release()      { c.busy.Store(false) }
