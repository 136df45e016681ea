// Package ws wires the HTTP upgrade path to the endpoint registry: resolve
// the request path through registry.FindMapping, upgrade the connection,
// and register/unregister the resulting session for the registry's
// authenticated-session bookkeeping.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowcast/rtmp-ingest/internal/logger"
	"github.com/flowcast/rtmp-ingest/internal/ws/registry"
)

// PrincipalFunc extracts the authenticated user principal (if any) from an
// incoming request, e.g. from a session cookie or bearer token. AnonymousPrincipal
// always returns "", leaving every session outside authenticated-session
// bookkeeping.
type PrincipalFunc func(*http.Request) string

// AnonymousPrincipal is the default PrincipalFunc: no session is ever treated
// as authenticated.
func AnonymousPrincipal(*http.Request) string { return "" }

// HTTPSessionIDFunc extracts the HTTP session id (if any) from an incoming
// request, e.g. from a cookie set by the application's session middleware.
type HTTPSessionIDFunc func(*http.Request) string

// NoHTTPSession is the default HTTPSessionIDFunc: requests carry no HTTP
// session id.
func NoHTTPSession(*http.Request) string { return "" }

// Handler upgrades matching requests to WebSocket connections and hands them
// to the registry for bookkeeping.
type Handler struct {
	Registry      *registry.Registry
	Upgrader      websocket.Upgrader
	Principal     PrincipalFunc
	HTTPSessionID HTTPSessionIDFunc
}

// NewHandler builds a Handler with sane anonymous-session defaults.
func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{
		Registry:      reg,
		Upgrader:      websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		Principal:     AnonymousPrincipal,
		HTTPSessionID: NoHTTPSession,
	}
}

// ServeHTTP implements http.Handler, resolving r.URL.Path through the
// registry before upgrading.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg, params, ok := h.Registry.FindMapping(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	h.Upgrader.ReadBufferSize = nonZero(cfg.BinaryBufferSize, h.Upgrader.ReadBufferSize)
	h.Upgrader.WriteBufferSize = nonZero(cfg.TextBufferSize, h.Upgrader.WriteBufferSize)

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger().Warn("ws upgrade failed", "path", r.URL.Path, "error", err)
		return
	}

	sess := &session{
		conn:      conn,
		principal: h.Principal(r),
		httpID:    h.HTTPSessionID(r),
		params:    params,
	}

	h.Registry.RegisterSession(r.URL.Path, sess)
	defer h.Registry.UnregisterSession(r.URL.Path, sess)

	sess.serve()
}

func nonZero(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// session adapts a *websocket.Conn to registry.Session and runs its read
// loop, discarding application payloads: the registry only needs enough of
// the session lifecycle to demonstrate add/remove and forced-close wiring,
// the endpoint's own message semantics are out of scope here.
type session struct {
	conn      *websocket.Conn
	principal string
	httpID    string
	params    map[string]string
}

func (s *session) Principal() string     { return s.principal }
func (s *session) HTTPSessionID() string { return s.httpID }

func (s *session) Close(reason registry.CloseReason, message string) error {
	code := websocket.CloseNormalClosure
	if reason == registry.CloseViolatedPolicy {
		code = websocket.ClosePolicyViolation
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, message),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *session) serve() {
	defer s.conn.Close()
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
