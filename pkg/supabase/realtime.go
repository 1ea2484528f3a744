package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// DefaultEventsPerSecond caps delivery of change events to handlers.
	DefaultEventsPerSecond = 10

	// DefaultHeartbeatInterval is how often the phoenix heartbeat is sent.
	DefaultHeartbeatInterval = 30 * time.Second

	realtimeWriteWait = 10 * time.Second
	minBackoff        = time.Second
	maxBackoff        = 30 * time.Second

	phxJoin      = "phx_join"
	phxLeave     = "phx_leave"
	phxReply     = "phx_reply"
	phxError     = "phx_error"
	phxClose     = "phx_close"
	phxHeartbeat = "heartbeat"
	phxAccess    = "access_token"
	pgChanges    = "postgres_changes"
)

// ChangeEvent is a single row change delivered by the realtime feed.
type ChangeEvent struct {
	Type            string         `json:"type"`
	Schema          string         `json:"schema"`
	Table           string         `json:"table"`
	Record          map[string]any `json:"record"`
	OldRecord       map[string]any `json:"old_record"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
}

// ChangeHandler receives change events for one table.
type ChangeHandler func(ChangeEvent)

// phoenixMessage is the v1 phoenix channel envelope.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type topicSubs struct {
	table    string
	handlers map[uint64]ChangeHandler
}

// Realtime keeps one websocket to the project's realtime endpoint and fans
// postgres_changes out to per-table handlers. It reconnects with exponential
// backoff and rejoins every subscribed table.
type Realtime struct {
	url    string
	logger *slog.Logger

	Dialer            *websocket.Dialer
	HeartbeatInterval time.Duration
	limiter           *rate.Limiter

	mu          sync.Mutex
	topics      map[string]*topicSubs
	nextID      uint64
	conn        *websocket.Conn
	accessToken string
	ref         uint64

	wmu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	doneCh    chan struct{}
}

// NewRealtime creates a realtime client for c. eventsPerSecond <= 0 selects
// DefaultEventsPerSecond.
func NewRealtime(c *Client, eventsPerSecond float64, logger *slog.Logger) *Realtime {
	if logger == nil {
		logger = slog.Default()
	}
	if eventsPerSecond <= 0 {
		eventsPerSecond = DefaultEventsPerSecond
	}
	burst := int(eventsPerSecond)
	if burst < 1 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Realtime{
		url:               c.RealtimeURL(),
		logger:            logger,
		Dialer:            websocket.DefaultDialer,
		HeartbeatInterval: DefaultHeartbeatInterval,
		limiter:           rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
		topics:            make(map[string]*topicSubs),
		ctx:               ctx,
		cancel:            cancel,
		doneCh:            make(chan struct{}),
	}
}

// Start connects in the background and keeps the connection alive until Stop.
func (r *Realtime) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Stop closes the connection and waits for the background loop to exit.
func (r *Realtime) Stop() {
	r.stopOnce.Do(func() {
		r.cancel()

		r.mu.Lock()
		conn := r.conn
		r.mu.Unlock()
		if conn != nil {
			r.wmu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			r.wmu.Unlock()
			_ = conn.Close()
		}

		started := true
		r.startOnce.Do(func() { started = false })
		if started {
			<-r.doneCh
		}
	})
}

// SetAccessToken authorizes the channels as the signed-in user. An empty token
// falls back to the anon key. Joined channels are updated in place.
func (r *Realtime) SetAccessToken(token string) {
	r.mu.Lock()
	r.accessToken = token
	conn := r.conn
	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	r.mu.Unlock()

	if conn == nil || token == "" {
		return
	}
	for _, topic := range topics {
		if err := r.push(conn, topic, phxAccess, map[string]string{"access_token": token}); err != nil {
			r.logger.Warn("failed to push realtime access token", "topic", topic, "error", err)
		}
	}
}

// Subscribe registers fn for changes on public.table and returns a function
// that removes it. The channel is left when its last handler is removed.
func (r *Realtime) Subscribe(table string, fn ChangeHandler) func() {
	topic := topicFor(table)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	subs, ok := r.topics[topic]
	if !ok {
		subs = &topicSubs{table: table, handlers: make(map[uint64]ChangeHandler)}
		r.topics[topic] = subs
	}
	subs.handlers[id] = fn
	conn := r.conn
	r.mu.Unlock()

	if !ok && conn != nil {
		if err := r.join(conn, topic, table); err != nil {
			r.logger.Warn("failed to join realtime channel", "topic", topic, "error", err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(topic, id) })
	}
}

func (r *Realtime) unsubscribe(topic string, id uint64) {
	r.mu.Lock()
	subs, ok := r.topics[topic]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(subs.handlers, id)
	empty := len(subs.handlers) == 0
	if empty {
		delete(r.topics, topic)
	}
	conn := r.conn
	r.mu.Unlock()

	if empty && conn != nil {
		if err := r.push(conn, topic, phxLeave, struct{}{}); err != nil {
			r.logger.Debug("failed to leave realtime channel", "topic", topic, "error", err)
		}
	}
}

func topicFor(table string) string {
	return "realtime:" + table + "_changes"
}

func (r *Realtime) run() {
	defer close(r.doneCh)

	backoff := minBackoff
	for {
		connected, err := r.serve()
		if r.ctx.Err() != nil {
			return
		}
		if connected {
			backoff = minBackoff
		}
		r.logger.Warn("realtime connection lost, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-r.ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// serve runs one connection until it fails or Stop is called.
func (r *Realtime) serve() (bool, error) {
	conn, _, err := r.Dialer.DialContext(r.ctx, r.url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to dial realtime: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	joins := make(map[string]string, len(r.topics))
	for topic, subs := range r.topics {
		joins[topic] = subs.table
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
		}
		r.mu.Unlock()
		_ = conn.Close()
	}()

	r.logger.Info("realtime connected", "topics", len(joins))
	for topic, table := range joins {
		if err := r.join(conn, topic, table); err != nil {
			return true, err
		}
	}

	readErr := make(chan error, 1)
	go func() { readErr <- r.readLoop(conn) }()

	ticker := time.NewTicker(r.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-readErr:
			return true, err
		case <-ticker.C:
			if err := r.push(conn, "phoenix", phxHeartbeat, struct{}{}); err != nil {
				_ = conn.Close()
				<-readErr
				return true, err
			}
		case <-r.ctx.Done():
			_ = conn.Close()
			<-readErr
			return true, nil
		}
	}
}

func (r *Realtime) readLoop(conn *websocket.Conn) error {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(2 * r.HeartbeatInterval)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var msg phoenixMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Warn("realtime sent invalid JSON", "error", err)
			continue
		}
		r.handle(msg)
	}
}

func (r *Realtime) handle(msg phoenixMessage) {
	switch msg.Event {
	case pgChanges:
		var payload struct {
			Data ChangeEvent `json:"data"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			r.logger.Warn("realtime sent invalid change payload", "topic", msg.Topic, "error", err)
			return
		}
		r.deliver(msg.Topic, payload.Data)

	case phxReply:
		var reply struct {
			Status   string          `json:"status"`
			Response json.RawMessage `json:"response"`
		}
		if err := json.Unmarshal(msg.Payload, &reply); err == nil && reply.Status != "ok" {
			r.logger.Warn("realtime request rejected",
				"topic", msg.Topic, "ref", msg.Ref, "status", reply.Status,
				"response", string(reply.Response))
		}

	case phxError, phxClose:
		r.logger.Info("realtime channel closed by server", "topic", msg.Topic, "event", msg.Event)
	}
}

func (r *Realtime) deliver(topic string, ev ChangeEvent) {
	r.mu.Lock()
	subs, ok := r.topics[topic]
	if !ok {
		r.mu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(subs.handlers))
	for id := range subs.handlers {
		ids = append(ids, id)
	}
	handlers := make([]ChangeHandler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, subs.handlers[id])
	}
	r.mu.Unlock()

	if err := r.limiter.Wait(r.ctx); err != nil {
		return
	}
	for _, fn := range handlers {
		fn(ev)
	}
}

func (r *Realtime) join(conn *websocket.Conn, topic, table string) error {
	r.mu.Lock()
	token := r.accessToken
	r.mu.Unlock()

	payload := map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]string{
				{"event": "*", "schema": "public", "table": table},
			},
		},
	}
	if token != "" {
		payload["access_token"] = token
	}
	return r.push(conn, topic, phxJoin, payload)
}

func (r *Realtime) push(conn *websocket.Conn, topic, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	r.mu.Lock()
	r.ref++
	ref := strconv.FormatUint(r.ref, 10)
	r.mu.Unlock()

	msg, err := json.Marshal(phoenixMessage{Topic: topic, Event: event, Payload: raw, Ref: ref})
	if err != nil {
		return err
	}

	r.wmu.Lock()
	defer r.wmu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return fmt.Errorf("failed to write %s: %w", event, err)
	}
	return nil
}
