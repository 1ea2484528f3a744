package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/pkg/slogx"
	"github.com/scrum0/scrum0/pkg/supabase"
)

// DefaultTimeout bounds every gateway call.
const DefaultTimeout = 10 * time.Second

type Config struct {
	// Timeout bounds each gateway call. Zero selects DefaultTimeout.
	Timeout time.Duration

	// EventsPerSecond throttles realtime delivery. Zero selects the client default.
	EventsPerSecond float64

	// Storage persists the session between restarts. Nil keeps it in memory.
	Storage supabase.SessionStorage
}

// Supabase implements Gateway and Prober on top of a Supabase project.
type Supabase struct {
	client   *supabase.Client
	auth     *supabase.Auth
	realtime *supabase.Realtime
	logger   *slog.Logger
	timeout  time.Duration

	// own counts sign-in/up/out calls in flight. Auth events raised while one
	// runs are dropped; the caller applies the call's result itself.
	own atomic.Int32

	startOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe []func()
}

var (
	_ Gateway = (*Supabase)(nil)
	_ Prober  = (*Supabase)(nil)
)

// NewSupabase builds the gateway. Call Start before use and Close on shutdown.
func NewSupabase(client *supabase.Client, cfg Config, logger *slog.Logger) *Supabase {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client.HTTPClient.Timeout = timeout

	g := &Supabase{
		client:  client,
		auth:    supabase.NewAuth(client, cfg.Storage, logger.With("component", "supabase_auth")),
		logger:  logger,
		timeout: timeout,
	}
	if client.Configured() {
		g.realtime = supabase.NewRealtime(client, cfg.EventsPerSecond, logger.With("component", "supabase_realtime"))
	}
	return g
}

// Start launches the token refresher and, for a configured project, the
// realtime connection that turns profile row changes into USER_UPDATED.
func (g *Supabase) Start() {
	g.startOnce.Do(func() {
		g.auth.Start()
		if g.realtime == nil {
			g.logger.Info("backend not configured, realtime disabled")
			return
		}

		if s := g.auth.Snapshot(); s != nil {
			g.realtime.SetAccessToken(s.AccessToken)
		}
		g.unsubscribe = append(g.unsubscribe,
			g.auth.OnChange(func(_ supabase.AuthEvent, s *supabase.Session) {
				token := ""
				if s != nil {
					token = s.AccessToken
				}
				g.realtime.SetAccessToken(token)
			}),
			g.realtime.Subscribe(ProfilesTable, g.onProfileChange),
		)
		g.realtime.Start()
	})
}

// Close stops background work. It is safe to call more than once.
func (g *Supabase) Close() {
	g.closeOnce.Do(func() {
		for _, fn := range g.unsubscribe {
			fn()
		}
		if g.realtime != nil {
			g.realtime.Stop()
		}
		g.auth.Stop()
	})
}

func (g *Supabase) Configured() bool { return g.client.Configured() }

// Probe issues the cheapest read against the profiles table.
func (g *Supabase) Probe(ctx context.Context) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()
	return classify(g.client.Probe(ctx, ProfilesTable), "")
}

func (g *Supabase) SignUp(ctx context.Context, in domain.SignUpInput) (domain.Session, error) {
	g.own.Add(1)
	defer g.own.Add(-1)

	ctx, cancel := g.bound(ctx)
	defer cancel()

	logger := g.logger.With(slogx.Email(in.Email), "username", in.Username)
	logger.Info("starting signup")

	available, err := g.usernameAvailable(ctx, in.Username)
	if err != nil {
		logger.Error("username availability check failed", "error", err)
		return domain.Session{}, classify(err, msgUsernameCheck)
	}
	if !available {
		return domain.Session{}, domain.NewError(domain.KindConflict, domain.MsgUsernameTaken, nil)
	}

	sess, user, err := g.auth.SignUp(ctx, supabase.SignUpRequest{
		Email:    in.Email,
		Password: in.Password,
		Data: map[string]any{
			"username":  in.Username,
			"full_name": in.FullName,
		},
	})
	if err != nil {
		logger.Error("identity creation failed", "error", err)
		return domain.Session{}, classify(err, "")
	}
	if user == nil || user.ID == "" {
		return domain.Session{}, domain.NewError(domain.KindBackend, msgNoUserReturned, nil)
	}
	if !user.ValidID() {
		logger.Warn("backend returned a non-uuid identity id", "user_id", user.ID)
	}

	token := ""
	if sess != nil {
		token = sess.AccessToken
	}

	row := profileRow{
		ID:       user.ID,
		Email:    user.Email,
		Username: in.Username,
		FullName: in.FullName,
	}
	var profile domain.Profile
	if err := g.client.Insert(ctx, token, ProfilesTable, row, &profile); err != nil {
		logger.Error("profile insert failed, signing out orphaned identity", "user_id", user.ID, "error", err)
		g.signOutOrphan(ctx, logger)
		if supabase.HasCode(err, supabase.CodeUniqueViolation) {
			return domain.Session{}, domain.NewError(domain.KindConflict, domain.MsgUsernameTaken, err)
		}
		return domain.Session{}, profileCreationError(err)
	}
	if profile.ID == "" {
		now := time.Now().UTC()
		profile = domain.Profile{
			ID:        row.ID,
			Email:     row.Email,
			Username:  row.Username,
			FullName:  row.FullName,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	logger.Info("signup completed", "user_id", user.ID)
	return domain.Session{Identity: identityOf(*user), Profile: profile}, nil
}

// signOutOrphan ends the session of an identity whose profile could not be
// created. It runs on its own deadline so a sign-up that failed by timing out
// or being cancelled still reaches the backend.
func (g *Supabase) signOutOrphan(ctx context.Context, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	if err := g.auth.SignOut(ctx); err != nil {
		logger.Warn("compensating sign-out failed", "error", err)
	}
}

func (g *Supabase) SignIn(ctx context.Context, cred domain.Credential) (domain.Session, error) {
	g.own.Add(1)
	defer g.own.Add(-1)

	ctx, cancel := g.bound(ctx)
	defer cancel()

	logger := g.logger.With(slogx.Email(cred.Email))
	logger.Info("starting signin")

	sess, err := g.auth.SignInWithPassword(ctx, cred.Email, cred.Password)
	if err != nil {
		logger.Info("authentication failed", "error", err)
		return domain.Session{}, classify(err, "")
	}

	profile, err := g.profile(ctx, sess.AccessToken, sess.User.ID)
	if err != nil {
		logger.Error("profile retrieval failed", "user_id", sess.User.ID, "error", err)
		return domain.Session{}, err
	}

	logger.Info("signin completed", "user_id", sess.User.ID, "username", profile.Username)
	return domain.Session{Identity: identityOf(sess.User), Profile: profile}, nil
}

func (g *Supabase) SignOut(ctx context.Context) error {
	g.own.Add(1)
	defer g.own.Add(-1)

	ctx, cancel := g.bound(ctx)
	defer cancel()

	if err := g.auth.SignOut(ctx); err != nil {
		return classify(err, "Sign out failed")
	}
	return nil
}

func (g *Supabase) CurrentSession(ctx context.Context) (*domain.Session, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	user, err := g.auth.User(ctx)
	if err != nil {
		return nil, classify(err, "Failed to load session")
	}
	if user == nil {
		return nil, nil
	}

	token, err := g.auth.AccessToken(ctx)
	if err != nil {
		return nil, classify(err, "Failed to load session")
	}

	profile, err := g.profile(ctx, token, user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Session{Identity: identityOf(*user), Profile: profile}, nil
}

func (g *Supabase) Profile(ctx context.Context, id string) (domain.Profile, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()
	return g.profile(ctx, g.token(ctx), id)
}

func (g *Supabase) profile(ctx context.Context, token, id string) (domain.Profile, error) {
	var p domain.Profile
	if err := g.client.SelectSingle(ctx, token, ProfilesTable, supabase.Eq("id", id), &p); err != nil {
		if supabase.HasCode(err, supabase.CodeNoRows) {
			return domain.Profile{}, domain.NewError(domain.KindConsistency, domain.MsgProfileNotFound, err)
		}
		return domain.Profile{}, classify(err, "Failed to load user profile")
	}
	return p, nil
}

func (g *Supabase) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (domain.Profile, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	patch := map[string]any{"updated_at": time.Now().UTC()}
	if update.Username != nil {
		patch["username"] = *update.Username
	}
	if update.FullName != nil {
		patch["full_name"] = *update.FullName
	}
	if update.AvatarURL != nil {
		patch["avatar_url"] = *update.AvatarURL
	}

	var p domain.Profile
	if err := g.client.Update(ctx, g.token(ctx), ProfilesTable, supabase.Eq("id", id), patch, &p); err != nil {
		g.logger.Error("profile update failed", "user_id", id, "error", err)
		if supabase.HasCode(err, supabase.CodeNoRows) {
			return domain.Profile{}, domain.NewError(domain.KindConsistency, domain.MsgProfileNotFound, err)
		}
		return domain.Profile{}, classify(err, "Failed to update profile")
	}

	g.logger.Info("profile updated", "user_id", id)
	return p, nil
}

func (g *Supabase) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	available, err := g.usernameAvailable(ctx, username)
	if err != nil {
		return false, classify(err, msgUsernameCheck)
	}
	return available, nil
}

func (g *Supabase) usernameAvailable(ctx context.Context, username string) (bool, error) {
	var row struct {
		Username string `json:"username"`
	}
	err := g.client.SelectSingle(ctx, g.token(ctx), ProfilesTable, supabase.Eq("username", username), &row)
	switch {
	case supabase.HasCode(err, supabase.CodeNoRows):
		return true, nil
	case err != nil:
		return false, err
	default:
		return false, nil
	}
}

// OnAuthChange resolves the profile behind every session change before
// handing it to fn. Events that are superseded by the time they are delivered
// are dropped.
func (g *Supabase) OnAuthChange(fn func(domain.AuthChange)) func() {
	return g.auth.OnChange(func(event supabase.AuthEvent, s *supabase.Session) {
		if g.own.Load() > 0 || g.superseded(s) {
			g.logger.Debug("dropping auth event", "event", event)
			return
		}

		change := domain.AuthChange{Event: domain.AuthEvent(event)}
		if s != nil {
			ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
			profile, err := g.profile(ctx, s.AccessToken, s.User.ID)
			cancel()
			if err != nil {
				change.Err = err
			} else {
				change.Session = &domain.Session{Identity: identityOf(s.User), Profile: profile}
			}
		}
		fn(change)
	})
}

func (g *Supabase) superseded(s *supabase.Session) bool {
	current := g.auth.Snapshot()
	switch {
	case s == nil:
		return current != nil
	case current == nil:
		return true
	default:
		return current.AccessToken != s.AccessToken
	}
}

func (g *Supabase) SubscribeTable(table string, fn func(TableChange)) func() {
	if g.realtime == nil {
		return func() {}
	}
	return g.realtime.Subscribe(table, func(ev supabase.ChangeEvent) {
		g.logger.Debug("realtime update received", "table", ev.Table, "event", ev.Type)
		fn(TableChange{EventType: ev.Type, Table: ev.Table, Row: ev.Record, OldRow: ev.OldRecord})
	})
}

// onProfileChange turns a change to the signed-in user's profile row into
// USER_UPDATED.
func (g *Supabase) onProfileChange(ev supabase.ChangeEvent) {
	s := g.auth.Snapshot()
	if s == nil {
		return
	}
	id, _ := ev.Record["id"].(string)
	if id == "" {
		id, _ = ev.OldRecord["id"].(string)
	}
	if id != s.User.ID {
		return
	}
	g.logger.Info("profile changed remotely", "user_id", id, "event", ev.Type)
	g.auth.NotifyUserUpdated()
}

// token returns the signed-in user's access token, or "" to fall back to the
// anon key.
func (g *Supabase) token(ctx context.Context) string {
	token, err := g.auth.AccessToken(ctx)
	if err != nil {
		g.logger.Warn("using anon key, access token unavailable", "error", err)
		return ""
	}
	return token
}

func (g *Supabase) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

type profileRow struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

func identityOf(u supabase.User) domain.Identity {
	return domain.Identity{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata}
}

// profileCreationError keeps the backend's own reason for a rejected insert.
// Transport failures and timeouts classify as connection errors.
func profileCreationError(err error) error {
	classified := classify(err, msgProfileCreation)

	var apiErr *supabase.APIError
	if !errors.As(err, &apiErr) || apiErr.Message == "" || domain.KindOf(classified) != domain.KindBackend {
		return classified
	}
	return domain.NewError(domain.KindBackend, msgProfileCreation+": "+apiErr.Message, err)
}
