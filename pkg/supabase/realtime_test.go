package supabase

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeRealtime accepts one socket, records what the client pushes and lets the
// test push messages back.
type fakeRealtime struct {
	t        *testing.T
	upgrader websocket.Upgrader
	received chan phoenixMessage
	outbound chan phoenixMessage
}

func newFakeRealtime(t *testing.T) (*fakeRealtime, *httptest.Server) {
	f := &fakeRealtime{
		t:        t,
		received: make(chan phoenixMessage, 16),
		outbound: make(chan phoenixMessage, 16),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeRealtime) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/realtime/v1/websocket" || r.URL.Query().Get("apikey") != "anon" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	go func() {
		for msg := range f.outbound {
			raw, _ := json.Marshal(msg)
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg phoenixMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			f.received <- msg
		}
	}
}

func (f *fakeRealtime) expect(event string) phoenixMessage {
	f.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-f.received:
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			f.t.Fatalf("timed out waiting for %s", event)
			return phoenixMessage{}
		}
	}
}

func TestRealtimeJoinsAndDeliversChanges(t *testing.T) {
	t.Parallel()

	f, srv := newFakeRealtime(t)

	rt := NewRealtime(NewClient(srv.URL, "anon"), 0, nil)
	rt.SetAccessToken("user-token")

	changes := make(chan ChangeEvent, 4)
	unsubscribe := rt.Subscribe("profiles", func(ev ChangeEvent) { changes <- ev })

	rt.Start()
	defer rt.Stop()

	join := f.expect(phxJoin)
	require.Equal(t, "realtime:profiles_changes", join.Topic)

	var joinPayload struct {
		Config struct {
			PostgresChanges []map[string]string `json:"postgres_changes"`
		} `json:"config"`
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(join.Payload, &joinPayload))
	require.Equal(t, "user-token", joinPayload.AccessToken)
	require.Equal(t, []map[string]string{{"event": "*", "schema": "public", "table": "profiles"}}, joinPayload.Config.PostgresChanges)

	f.outbound <- phoenixMessage{
		Topic: "realtime:profiles_changes",
		Event: pgChanges,
		Payload: json.RawMessage(`{"ids":[1],"data":{"type":"UPDATE","schema":"public","table":"profiles",` +
			`"record":{"id":"u1","username":"alice"},"old_record":{"id":"u1"},"commit_timestamp":"2025-01-01T00:00:00Z"}}`),
	}

	select {
	case ev := <-changes:
		require.Equal(t, "UPDATE", ev.Type)
		require.Equal(t, "profiles", ev.Table)
		require.Equal(t, "alice", ev.Record["username"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	rt.SetAccessToken("rotated")
	access := f.expect(phxAccess)
	require.JSONEq(t, `{"access_token":"rotated"}`, string(access.Payload))

	unsubscribe()
	leave := f.expect(phxLeave)
	require.Equal(t, "realtime:profiles_changes", leave.Topic)
}

func TestRealtimeSendsHeartbeat(t *testing.T) {
	t.Parallel()

	f, srv := newFakeRealtime(t)

	rt := NewRealtime(NewClient(srv.URL, "anon"), 0, nil)
	rt.HeartbeatInterval = 50 * time.Millisecond
	rt.Start()
	defer rt.Stop()

	hb := f.expect(phxHeartbeat)
	require.Equal(t, "phoenix", hb.Topic)
	require.NotEmpty(t, hb.Ref)
}

func TestRealtimeStopWithoutStart(t *testing.T) {
	t.Parallel()

	rt := NewRealtime(NewClient("http://127.0.0.1:1", "anon"), 0, nil)
	rt.Stop()
	rt.Stop()
}
