package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"vortex/internal/application/projections"
	"vortex/internal/application/subscriptions"
	"vortex/internal/domain/message"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
)

// Frame types pushed to live clients.
const (
	frameMessages      = "messages"
	frameConversations = "conversations"
)

// liveFrame carries one full snapshot.
type liveFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsClient owns one socket. Only writePump writes to conn after the upgrade.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte // holds at most the latest unsent snapshot
	closed chan struct{}
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn, send: make(chan []byte, 1), closed: make(chan struct{})}
}

// push queues a snapshot, replacing one the writer has not sent yet.
// Snapshots are complete, so only the newest matters.
func (c *wsClient) push(frame liveFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("ws_event", "event", "encode_failed", "type", frame.Type, "error", err)
		return
	}
	for {
		select {
		case c.send <- data:
			return
		default:
			select {
			case <-c.send:
			default:
			}
		}
	}
}

// readPump consumes control frames until the peer goes away.
func (c *wsClient) readPump() {
	defer close(c.closed)
	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws_event", "event", "read_error", "error", err)
			}
			return
		}
	}
}

// writePump sends snapshots and pings. It closes the socket when the peer
// leaves or when stop closes because the subscription ended.
func (c *wsClient) writePump(stop <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"))
			return
		case <-c.closed:
			return
		}
	}
}

func (s *Server) subscriptionDeps() subscriptions.Deps {
	return subscriptions.Deps{
		Bus:           s.bus,
		Conversations: s.stores.Conversations,
		Messages:      s.stores.Messages,
		Profiles:      s.stores.Profiles,
		Collector:     s.collector,
		Limit:         s.opts.MessageLimit,
	}
}

// checkOrigin accepts same-host and trusted origins. Requests without an
// Origin header do not come from a browser page.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host || slices.Contains(s.opts.TrustedOrigins, u.Host)
}

// serveLive upgrades the request and runs start's subscription for as long
// as the socket stays open.
func (s *Server) serveLive(w http.ResponseWriter, r *http.Request, name string,
	start func(ctx context.Context, c *wsClient) (*subscriptions.Subscription, error)) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws_event", "event", "upgrade_failed", "name", name, "error", err)
		return
	}
	client := newWSClient(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sub, err := start(ctx, client)
	if err != nil {
		slog.Error("ws_event", "event", "subscribe_failed", "name", name, "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"), time.Now().Add(wsWriteWait))
		conn.Close()
		return
	}
	defer sub.Unsubscribe()

	slog.Info("ws_event", "event", "connected", "name", name, "user_id", callerID(r))
	go client.writePump(sub.Done())
	client.readPump()
	slog.Info("ws_event", "event", "disconnected", "name", name, "user_id", callerID(r))
}

// handleWatchMessages handles GET /ws/conversations/{id}
func (s *Server) handleWatchMessages(w http.ResponseWriter, r *http.Request) {
	convID := r.PathValue("id")
	deps := s.subscriptionDeps()
	if err := subscriptions.Authorize(r.Context(), deps, convID, callerID(r)); err != nil {
		writeError(w, err)
		return
	}
	s.serveLive(w, r, "watch_messages", func(ctx context.Context, c *wsClient) (*subscriptions.Subscription, error) {
		return subscriptions.WatchMessages(ctx, convID, deps, func(msgs []message.Message) {
			c.push(liveFrame{Type: frameMessages, Data: toMessageViews(msgs)})
		})
	})
}

// handleWatchConversations handles GET /ws/conversations
func (s *Server) handleWatchConversations(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	deps := s.subscriptionDeps()
	s.serveLive(w, r, "watch_conversations", func(ctx context.Context, c *wsClient) (*subscriptions.Subscription, error) {
		return subscriptions.WatchUserConversations(ctx, userID, deps, func(rows []projections.ConversationSummary) {
			c.push(liveFrame{Type: frameConversations, Data: toSummaryViews(rows)})
		})
	})
}
