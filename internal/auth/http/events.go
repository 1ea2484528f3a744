package http

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/scrum0/scrum0/internal/auth/session"
	"github.com/scrum0/scrum0/pkg/slogx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// EventsHandler streams session state to websocket clients. Each client
// gets the current snapshot on connect, then one message per change. A slow
// client only ever sees the latest state; intermediate rounds are coalesced.
type EventsHandler struct {
	controller *session.Controller
	upgrader   websocket.Upgrader
}

func NewEventsHandler(ctrl *session.Controller, allowedOrigins []string) *EventsHandler {
	anyOrigin := slices.Contains(allowedOrigins, "*")
	return &EventsHandler{
		controller: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || anyOrigin {
					return true
				}
				if slices.Contains(allowedOrigins, origin) {
					return true
				}
				slogx.FromContext(r.Context()).Warn("websocket connection rejected: origin not allowed", "origin", origin)
				return false
			},
		},
	}
}

// ServeHTTP handles GET /v1/auth/events
//
//	@Summary		Stream session state
//	@Description	Upgrades to a websocket and pushes a StateResponse on connect and after every state change. Client messages are ignored.
//	@Tags			Session
//	@Success		101	{object}	authsdk.StateResponse	"Stream of session states"
//	@Router			/v1/auth/events [get].
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var (
		mu     sync.Mutex
		latest session.State
		seen   bool
		wake   = make(chan struct{}, 1)
	)
	notify := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	// Subscribe before taking the snapshot so no change falls in between.
	unsubscribe := h.controller.Subscribe(func(st session.State) {
		mu.Lock()
		latest, seen = st, true
		mu.Unlock()
		notify()
	})
	defer unsubscribe()

	mu.Lock()
	if !seen {
		latest = h.controller.State()
	}
	mu.Unlock()
	notify()

	log.Info("events client connected")

	done := make(chan struct{})
	go readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Info("events client disconnected")
			return

		case <-r.Context().Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case <-wake:
			mu.Lock()
			st := latest
			mu.Unlock()

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toStateResponse(st, h.controller.DemoMode())); err != nil {
				log.Warn("failed to write state event", "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// readPump discards client messages and keeps the read deadline moving on
// pongs. It closes done when the connection goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
