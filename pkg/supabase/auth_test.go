package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	mu      sync.Mutex
	session *Session
	deletes int
}

func (m *memoryStorage) LoadSession(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNoSession
	}
	cp := *m.session
	return &cp, nil
}

func (m *memoryStorage) SaveSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *memoryStorage) DeleteSession(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	m.deletes++
	return nil
}

func (m *memoryStorage) current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// fakeGoTrue serves the token, logout and user endpoints.
type fakeGoTrue struct {
	t *testing.T

	tokenTTL      time.Duration
	refreshStatus int
	logoutStatus  int

	refreshes atomic.Int32
	logouts   atomic.Int32
}

func (f *fakeGoTrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/auth/v1/token":
		switch r.URL.Query().Get("grant_type") {
		case "password":
			var body map[string]string
			require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
			if body["password"] != "secret1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
				return
			}
			f.writeToken(w, "access-1", "refresh-1")
		case "refresh_token":
			n := f.refreshes.Add(1)
			if f.refreshStatus != 0 {
				w.WriteHeader(f.refreshStatus)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh Token Not Found"}`))
				return
			}
			f.writeToken(w, "access-r"+string(rune('0'+n)), "refresh-r")
		}
	case "/auth/v1/logout":
		f.logouts.Add(1)
		if f.logoutStatus != 0 {
			w.WriteHeader(f.logoutStatus)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "/auth/v1/user":
		if r.Header.Get("Authorization") == "Bearer revoked" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":401,"error_code":"bad_jwt","msg":"invalid JWT"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"7d8f1c7e-63f2-4b4f-9a8e-2b9f1a4b2d11","email":"a@b.com"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGoTrue) writeToken(w http.ResponseWriter, access, refresh string) {
	_ = json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int(f.tokenTTL / time.Second),
		RefreshToken: refresh,
		User:         &User{ID: "7d8f1c7e-63f2-4b4f-9a8e-2b9f1a4b2d11", Email: "a@b.com"},
	})
}

type recordedEvent struct {
	event   AuthEvent
	session *Session
}

func newTestAuth(t *testing.T, f *fakeGoTrue, storage SessionStorage) (*Auth, chan recordedEvent) {
	t.Helper()

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	a := NewAuth(NewClient(srv.URL, "anon"), storage, nil)
	events := make(chan recordedEvent, 16)
	a.OnChange(func(event AuthEvent, s *Session) {
		events <- recordedEvent{event: event, session: s}
	})
	a.Start()
	t.Cleanup(a.Stop)
	return a, events
}

func nextEvent(t *testing.T, events <-chan recordedEvent) recordedEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auth event")
		return recordedEvent{}
	}
}

func TestAuthSignInPersistsAndNotifies(t *testing.T) {
	t.Parallel()

	storage := &memoryStorage{}
	a, events := newTestAuth(t, &fakeGoTrue{t: t, tokenTTL: time.Hour}, storage)

	s, err := a.SignInWithPassword(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "access-1", s.AccessToken)

	ev := nextEvent(t, events)
	require.Equal(t, SignedIn, ev.event)
	require.Equal(t, "a@b.com", ev.session.User.Email)
	require.Equal(t, "refresh-1", storage.current().RefreshToken)

	token, err := a.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-1", token)
}

func TestAuthSignInRejected(t *testing.T) {
	t.Parallel()

	a, _ := newTestAuth(t, &fakeGoTrue{t: t, tokenTTL: time.Hour}, nil)

	_, err := a.SignInWithPassword(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	require.True(t, HasCode(err, CodeInvalidCredentials))

	s, err := a.Session(context.Background())
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestAuthSessionRefreshesNearExpiry(t *testing.T) {
	t.Parallel()

	f := &fakeGoTrue{t: t, tokenTTL: 30 * time.Second}
	storage := &memoryStorage{}
	a, events := newTestAuth(t, f, storage)

	_, err := a.SignInWithPassword(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, SignedIn, nextEvent(t, events).event)

	// 30s of validity is inside the default refresh margin.
	s, err := a.Session(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-r1", s.AccessToken)
	require.Equal(t, int32(1), f.refreshes.Load())
	require.Equal(t, "refresh-r", storage.current().RefreshToken)
	require.Equal(t, TokenRefreshed, nextEvent(t, events).event)
}

func TestAuthRejectedRefreshSignsOut(t *testing.T) {
	t.Parallel()

	f := &fakeGoTrue{t: t, tokenTTL: 10 * time.Second, refreshStatus: http.StatusBadRequest}
	storage := &memoryStorage{}
	a, events := newTestAuth(t, f, storage)

	_, err := a.SignInWithPassword(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, SignedIn, nextEvent(t, events).event)

	s, err := a.Session(context.Background())
	require.NoError(t, err)
	require.Nil(t, s)
	require.Nil(t, storage.current())

	ev := nextEvent(t, events)
	require.Equal(t, SignedOut, ev.event)
	require.Nil(t, ev.session)
}

func TestAuthTransientRefreshFailureKeepsSession(t *testing.T) {
	t.Parallel()

	f := &fakeGoTrue{t: t, tokenTTL: 10 * time.Second, refreshStatus: http.StatusServiceUnavailable}
	storage := &memoryStorage{}
	a, _ := newTestAuth(t, f, storage)

	_, err := a.SignInWithPassword(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	_, err = a.Session(context.Background())
	require.Error(t, err)
	require.NotNil(t, storage.current())
}

func TestAuthSignOutClearsLocallyOnServerError(t *testing.T) {
	t.Parallel()

	f := &fakeGoTrue{t: t, tokenTTL: time.Hour, logoutStatus: http.StatusInternalServerError}
	storage := &memoryStorage{}
	a, events := newTestAuth(t, f, storage)

	_, err := a.SignInWithPassword(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, SignedIn, nextEvent(t, events).event)

	err = a.SignOut(context.Background())
	require.Error(t, err)
	require.Nil(t, storage.current())
	require.Equal(t, SignedOut, nextEvent(t, events).event)

	// Signing out again is a no-op.
	require.NoError(t, a.SignOut(context.Background()))
	require.Equal(t, int32(1), f.logouts.Load())
}

func TestAuthLoadsPersistedSession(t *testing.T) {
	t.Parallel()

	storage := &memoryStorage{session: &Session{
		AccessToken:  "persisted",
		RefreshToken: "refresh-p",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         User{ID: "7d8f1c7e-63f2-4b4f-9a8e-2b9f1a4b2d11", Email: "a@b.com"},
	}}
	a, _ := newTestAuth(t, &fakeGoTrue{t: t, tokenTTL: time.Hour}, storage)

	s, err := a.Session(context.Background())
	require.NoError(t, err)
	require.Equal(t, "persisted", s.AccessToken)

	user, err := a.User(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a@b.com", user.Email)
}

func TestAuthUserRejectedTokenClearsSession(t *testing.T) {
	t.Parallel()

	storage := &memoryStorage{session: &Session{
		AccessToken: "revoked",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	a, events := newTestAuth(t, &fakeGoTrue{t: t, tokenTTL: time.Hour}, storage)

	user, err := a.User(context.Background())
	require.NoError(t, err)
	require.Nil(t, user)
	require.Nil(t, storage.current())
	require.Equal(t, SignedOut, nextEvent(t, events).event)
}

func TestAuthListenersOrderedAndRemovable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(&fakeGoTrue{t: t, tokenTTL: time.Hour})
	defer srv.Close()

	a := NewAuth(NewClient(srv.URL, "anon"), nil, nil)
	a.Start()
	defer a.Stop()

	var mu sync.Mutex
	var calls []string
	done := make(chan struct{}, 4)
	record := func(name string) AuthListener {
		return func(event AuthEvent, _ *Session) {
			mu.Lock()
			calls = append(calls, name+":"+string(event))
			mu.Unlock()
			done <- struct{}{}
		}
	}

	a.OnChange(record("first"))
	unsubscribe := a.OnChange(record("second"))

	_, err := a.SignInWithPassword(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	<-done
	<-done

	unsubscribe()
	unsubscribe()

	require.NoError(t, a.SignOut(context.Background()))
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first:SIGNED_IN", "second:SIGNED_IN", "first:SIGNED_OUT"}, calls)
}
