package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/notifykit/pkg/jwt"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Inbox is the read-state API the protocol needs. notifications.Storage
// satisfies it.
type Inbox interface {
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, messageID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// Handler upgrades authenticated requests to websocket connections and
// speaks the notification protocol on them.
type Handler struct {
	registry *Registry
	auth     *jwt.Service
	inbox    Inbox
	extract  jwt.TokenExtractorFunc
	upgrader websocket.Upgrader
	origins  []string
	limit    rate.Limit
	burst    int
	buffer   int
	now      func() time.Time
	log      *slog.Logger
}

type HandlerOption func(*Handler)

// WithAllowedOrigins sets the browser origins allowed to connect. "*"
// allows any origin. Without this option only same-host origins pass.
func WithAllowedOrigins(origins ...string) HandlerOption {
	return func(h *Handler) { h.origins = origins }
}

// WithRateLimit bounds inbound frames per connection.
func WithRateLimit(perSecond float64, burst int) HandlerOption {
	return func(h *Handler) {
		h.limit = rate.Limit(perSecond)
		h.burst = burst
	}
}

// WithSendBuffer sets how many outbound frames may queue per connection
// before the client counts as slow.
func WithSendBuffer(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithTokenExtractor(fn jwt.TokenExtractorFunc) HandlerOption {
	return func(h *Handler) { h.extract = fn }
}

func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

func NewHandler(registry *Registry, auth *jwt.Service, inbox Inbox, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry: registry,
		auth:     auth,
		inbox:    inbox,
		extract:  jwt.ChainExtractors(jwt.QueryTokenExtractor("token"), jwt.BearerTokenExtractor),
		limit:    rate.Limit(10),
		burst:    20,
		buffer:   64,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, _, err := jwt.Authenticate(r, h.auth, h.extract)
	if err != nil {
		h.log.LogAttrs(r.Context(), slog.LevelDebug, "realtime auth rejected",
			logger.Component("realtime"), logger.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.LogAttrs(r.Context(), slog.LevelDebug, "websocket upgrade failed",
			logger.Component("realtime"), logger.Error(err))
		return
	}

	client := newWSClient(conn, h.buffer)
	id := Identity{UserID: claims.UserID, Role: claims.Role, Department: claims.Department}
	if err := h.registry.Join(client, id); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	go client.writeLoop()

	s := &session{
		h:       h,
		client:  client,
		id:      id,
		limiter: rate.NewLimiter(h.limit, h.burst),
	}
	ctx := r.Context()
	h.log.LogAttrs(ctx, slog.LevelInfo, "realtime client connected",
		logger.Component("realtime"), logger.UserID(id.UserID), logger.ConnectionID(client.ID()))

	s.greet(ctx)
	s.readLoop(ctx, conn)

	last := h.registry.Leave(client)
	client.Close()
	h.log.LogAttrs(ctx, slog.LevelInfo, "realtime client disconnected",
		logger.Component("realtime"), logger.UserID(id.UserID), logger.ConnectionID(client.ID()),
		slog.Bool("last_connection", last))
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.origins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, o := range h.origins {
		if o == "*" || strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	return false
}

// session is the per-connection protocol state.
type session struct {
	h       *Handler
	client  Client
	id      Identity
	limiter *rate.Limiter
}

func (s *session) reply(event string, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		s.h.log.Error("encode realtime frame", logger.Component("realtime"), logger.Error(err))
		return
	}
	s.client.Send(frame)
}

func (s *session) replyError(msg string) { s.reply(EventError, ErrorEvent{Message: msg}) }

// greet runs once the connection is joined: connected, then the unread
// count, both to this connection only.
func (s *session) greet(ctx context.Context) {
	s.reply(EventConnected, Connected{UserID: s.id.UserID, Timestamp: s.h.now()})
	s.sendUnread(ctx)
}

func (s *session) sendUnread(ctx context.Context) {
	n, err := s.h.inbox.CountUnread(ctx, s.id.UserID)
	if err != nil {
		s.h.log.LogAttrs(ctx, slog.LevelError, "count unread failed",
			logger.Component("realtime"), logger.UserID(s.id.UserID), logger.Error(err))
		s.replyError("unread count unavailable")
		return
	}
	s.reply(EventUnreadCount, UnreadCount{Count: n})
}

// syncUnread pushes the fresh unread count to all of the user's connections.
func (s *session) syncUnread(ctx context.Context) {
	n, err := s.h.inbox.CountUnread(ctx, s.id.UserID)
	if err != nil {
		return
	}
	_, _ = s.h.registry.EmitUser(s.id.UserID, EventUnreadCount, UnreadCount{Count: n})
}

func (s *session) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.h.log.LogAttrs(ctx, slog.LevelDebug, "realtime read failed",
					logger.Component("realtime"), logger.ConnectionID(s.client.ID()), logger.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handle(ctx, data)
	}
}

func (s *session) handle(ctx context.Context, data []byte) {
	if !s.limiter.Allow() {
		s.replyError(ErrRateLimited.Error())
		return
	}
	f, err := Decode(data)
	if err != nil {
		s.replyError("malformed frame")
		return
	}

	switch f.Event {
	case EventPing:
		s.reply(EventPong, Pong{Timestamp: s.h.now()})

	case EventGetUnreadCount:
		s.sendUnread(ctx)

	case EventMarkRead:
		var p MarkRead
		if err := json.Unmarshal(f.Data, &p); err != nil || p.MessageID == "" {
			s.replyError("messageId is required")
			return
		}
		err := s.h.inbox.MarkRead(ctx, s.id.UserID, p.MessageID)
		s.reply(EventMessageRead, MessageRead{MessageID: p.MessageID, Success: err == nil})
		if err != nil {
			s.logFailure(ctx, "mark read failed", err)
			return
		}
		s.syncUnread(ctx)

	case EventMarkAllRead:
		_, err := s.h.inbox.MarkAllRead(ctx, s.id.UserID)
		s.reply(EventAllRead, AllRead{Success: err == nil})
		if err != nil {
			s.logFailure(ctx, "mark all read failed", err)
			return
		}
		_, _ = s.h.registry.EmitUser(s.id.UserID, EventUnreadCount, UnreadCount{Count: 0})

	default:
		s.replyError(fmt.Sprintf("%s: %s", ErrUnknownEvent, f.Event))
	}
}

func (s *session) logFailure(ctx context.Context, msg string, err error) {
	s.h.log.LogAttrs(ctx, slog.LevelWarn, msg,
		logger.Component("realtime"), logger.UserID(s.id.UserID), logger.Error(err))
}
