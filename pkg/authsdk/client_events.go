package authsdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Watch streams session snapshots to fn until ctx is done or the server
// closes the stream. The first snapshot is the state at connect time.
func (c *Client) Watch(ctx context.Context, fn func(StateResponse)) error {
	u := c.url("/v1/auth/events")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to open event stream: HTTP %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var st StateResponse
		if err := conn.ReadJSON(&st); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("event stream closed: %w", err)
			}
			return fmt.Errorf("failed to read event: %w", err)
		}
		fn(st)
	}
}
