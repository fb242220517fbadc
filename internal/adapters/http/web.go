package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"vortex/internal/adapters/http/middleware"
	"vortex/internal/adapters/http/perf"
	"vortex/internal/adapters/live"
	conversationStore "vortex/internal/adapters/storage/conversation"
	messageStore "vortex/internal/adapters/storage/message"
	outboxStore "vortex/internal/adapters/storage/outbox"
	profileStore "vortex/internal/adapters/storage/profile"
)

// Stores holds all storage dependencies.
type Stores struct {
	Conversations conversationStore.Store
	Messages      messageStore.Store
	Profiles      profileStore.Store
	Outbox        outboxStore.Store
}

// Options configures the HTTP surface.
type Options struct {
	CSRFKey             []byte // 32 bytes
	SecureCookies       bool
	TrustedOrigins      []string // hosts trusted for CSRF and WebSocket upgrades
	AdminIDs            []string
	RateLimitPerSecond  int // non-positive disables limiting
	SlowRequestMs       int
	PageSize            int // default history window for GET .../messages
	MessageLimit        int // live history cap; non-positive pushes the whole history
	MarkReadConcurrency int
}

// Server serves the JSON API and the live WebSocket endpoints.
type Server struct {
	stores    Stores
	bus       live.Bus
	collector *perf.Collector
	opts      Options
	admins    map[string]bool
	limiter   *middleware.RateLimiter
	upgrader  websocket.Upgrader
	handler   http.Handler

	generateID func() string
	now        func() time.Time
}

// NewServer wires HTTP handlers for the app.
// PRE: stores and bus are non-nil; opts.CSRFKey is 32 bytes
// POST: Handler is ready to serve; Close releases the rate limiter
func NewServer(s Stores, bus live.Bus, collector *perf.Collector, opts Options) *Server {
	srv := &Server{
		stores:     s,
		bus:        bus,
		collector:  collector,
		opts:       opts,
		admins:     make(map[string]bool, len(opts.AdminIDs)),
		limiter:    middleware.NewRateLimiter(opts.RateLimitPerSecond, time.Second),
		generateID: generateID,
		now:        time.Now,
	}
	for _, id := range opts.AdminIDs {
		srv.admins[id] = true
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     srv.checkOrigin,
	}

	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	// Apply middleware: Timing -> RateLimit -> Identity -> CSRF -> SecurityHeaders -> Mux
	srv.handler = middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, opts.SecureCookies, opts.TrustedOrigins),
		middleware.Identity("/api/", "/ws/"),
		middleware.RateLimit(srv.limiter),
		middleware.Timing(collector, opts.SlowRequestMs),
	)
	return srv
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/messages", s.handleSendMessage)
	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.handleGetMessages)
	mux.HandleFunc("POST /api/conversations/{id}/read", s.handleMarkRead)

	mux.HandleFunc("GET /api/profile", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profile", s.handleSaveProfile)
	mux.HandleFunc("POST /api/presence", s.handleSetPresence)

	mux.HandleFunc("GET /api/admin/perf", s.requireAdmin(s.handleAdminPerf))
	mux.HandleFunc("GET /api/admin/outbox", s.requireAdmin(s.handleAdminOutboxList))
	mux.HandleFunc("POST /api/admin/outbox/{id}/retry", s.requireAdmin(s.handleAdminOutboxRetry))
	mux.HandleFunc("POST /api/admin/outbox/{id}/abandon", s.requireAdmin(s.handleAdminOutboxAbandon))

	mux.HandleFunc("GET /ws/conversations", s.handleWatchConversations)
	mux.HandleFunc("GET /ws/conversations/{id}", s.handleWatchMessages)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Close()
}
