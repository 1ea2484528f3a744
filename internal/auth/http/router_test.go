package http_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authhttp "github.com/scrum0/scrum0/internal/auth/http"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/internal/auth/gateway"
	"github.com/scrum0/scrum0/internal/auth/health"
	"github.com/scrum0/scrum0/internal/auth/session"
	"github.com/scrum0/scrum0/internal/auth/store/drivers/sqlite"
	"github.com/scrum0/scrum0/pkg/authsdk"
	"github.com/scrum0/scrum0/pkg/supabase"
	"github.com/stretchr/testify/require"
)

// newDemoServer runs the full stack against an unconfigured backend, so
// every session operation takes the local demo path.
func newDemoServer(t *testing.T) (*authsdk.Client, *session.Controller) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	gw := gateway.NewSupabase(supabase.NewClient("", ""), gateway.Config{}, logger)
	gw.Start()
	t.Cleanup(gw.Close)

	ctrl := session.NewController(gw, health.NewMonitor(gw, logger), logger)
	require.NoError(t, ctrl.Init(context.Background()))
	t.Cleanup(ctrl.Close)

	router := authhttp.NewRouter(ctrl, st, authhttp.RouterConfig{
		BuildVersion:   "test",
		AllowedOrigins: []string{"http://localhost:3000"},
	}, logger)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return authsdk.NewClient(srv.URL), ctrl
}

func requireAPIError(t *testing.T, err error, status int, code string) *authsdk.APIError {
	t.Helper()
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected *authsdk.APIError, got %v", err)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}

func TestStateAfterInit(t *testing.T) {
	client, _ := newDemoServer(t)

	st, err := client.State(context.Background())
	require.NoError(t, err)
	require.False(t, st.Authenticated())
	require.False(t, st.Loading)
	require.True(t, st.DemoMode)
	require.Equal(t, "anonymous", st.Phase)
	require.NotNil(t, st.Connection)
	require.False(t, st.Connection.Configured)
}

func TestDemoSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	client, _ := newDemoServer(t)

	st, err := client.SignIn(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	require.True(t, st.Authenticated())
	require.Equal(t, "alice", st.User.Username)
	require.Equal(t, "alice@example.com", st.User.Email)
	require.Equal(t, "authenticated", st.Phase)

	name := "Alice Liddell"
	st, err = client.UpdateProfile(ctx, authsdk.ProfileUpdateRequest{FullName: &name})
	require.NoError(t, err)
	require.Equal(t, name, st.User.FullName)

	st, err = client.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, st.Authenticated())

	st, err = client.SignOut(ctx)
	require.NoError(t, err)
	require.False(t, st.Authenticated())
	require.Empty(t, st.Error)

	// Signing out twice is fine.
	_, err = client.SignOut(ctx)
	require.NoError(t, err)
}

func TestDemoSignUp(t *testing.T) {
	client, _ := newDemoServer(t)

	st, err := client.SignUp(context.Background(), authsdk.SignUpRequest{
		Email:    "bob@example.com",
		Password: "secret1",
		Username: "BobTheBuilder",
		FullName: "Bob",
	})
	require.NoError(t, err)
	require.Equal(t, "bobthebuilder", st.User.Username)
	require.Equal(t, "Bob", st.User.FullName)
}

func TestValidationErrors(t *testing.T) {
	ctx := context.Background()
	client, ctrl := newDemoServer(t)

	_, err := client.SignIn(ctx, "not-an-email", "secret1")
	apiErr := requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeValidationFailed)
	require.NotEmpty(t, apiErr.Description)

	// The message is also recorded in state.
	require.Equal(t, apiErr.Description, ctrl.State().Error)

	_, err = client.SignUp(ctx, authsdk.SignUpRequest{Email: "a@b.com", Password: "123", Username: "abc"})
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeValidationFailed)
}

func TestUpdateProfileRequiresSignIn(t *testing.T) {
	client, _ := newDemoServer(t)

	name := "x"
	_, err := client.UpdateProfile(context.Background(), authsdk.ProfileUpdateRequest{FullName: &name})
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated)
}

func TestMalformedBody(t *testing.T) {
	client, _ := newDemoServer(t)

	resp, err := http.Post(client.BaseURL+"/v1/auth/signin", "application/json", strings.NewReader(`{"email":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Post(client.BaseURL+"/v1/auth/signin", "application/json",
		strings.NewReader(`{"email":"a@b.com","password":"secret1","role":"admin"}`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestConnectionEndpoint(t *testing.T) {
	client, _ := newDemoServer(t)

	status, err := client.Connection(context.Background())
	require.NoError(t, err)
	require.False(t, status.Configured)
	require.False(t, status.Connected)
	require.NotEmpty(t, status.Error)
}

func TestHealthEndpoints(t *testing.T) {
	ctx := context.Background()
	client, _ := newDemoServer(t)

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.True(t, strings.HasPrefix(ready.Checks.Backend, "demo"))
}

func TestCORSPreflight(t *testing.T) {
	client, _ := newDemoServer(t)

	req, err := http.NewRequest(http.MethodOptions, client.BaseURL+"/v1/auth/signin", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEventsStream(t *testing.T) {
	client, ctrl := newDemoServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	states := make(chan authsdk.StateResponse, 16)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- client.Watch(ctx, func(st authsdk.StateResponse) { states <- st })
	}()

	// The first message is the current snapshot.
	select {
	case st := <-states:
		require.False(t, st.Authenticated())
	case <-ctx.Done():
		t.Fatal("no initial snapshot")
	}

	require.NoError(t, ctrl.SignIn(ctx, domain.Credential{Email: "carol@example.com", Password: "secret1"}))

	require.Eventually(t, func() bool {
		for {
			select {
			case st := <-states:
				if st.Authenticated() && st.User.Username == "carol" {
					return true
				}
			default:
				return false
			}
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-watchErr:
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestEventsRejectsForeignOrigin(t *testing.T) {
	client, _ := newDemoServer(t)

	req, err := http.NewRequest(http.MethodGet, client.BaseURL+"/v1/auth/events", nil)
	require.NoError(t, err)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Origin", "https://evil.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSwaggerDoc(t *testing.T) {
	client, _ := newDemoServer(t)

	resp, err := http.Get(client.BaseURL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
