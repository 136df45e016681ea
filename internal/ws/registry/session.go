package registry

// CloseReason classifies why the registry closed a session on its own
// initiative, independent of the application-level close codes a WebSocket
// transport might use.
type CloseReason int

const (
	// CloseNormal is used when a session is unregistered as part of the
	// ordinary connection lifecycle.
	CloseNormal CloseReason = iota
	// CloseViolatedPolicy is used when a session is force-closed because the
	// HTTP session it rode in on has ended.
	CloseViolatedPolicy
)

func (r CloseReason) String() string {
	switch r {
	case CloseViolatedPolicy:
		return "VIOLATED_POLICY"
	default:
		return "NORMAL"
	}
}

// Session is the minimal surface the registry needs from a live WebSocket
// connection: enough identity to bucket it by HTTP session, and a way to
// force it closed.
type Session interface {
	// Principal returns the authenticated user principal name, or "" if the
	// session carries no authentication.
	Principal() string
	// HTTPSessionID returns the id of the HTTP session the WebSocket
	// handshake rode in on, or "" if there is none.
	HTTPSessionID() string
	// Close closes the underlying transport with the given reason.
	Close(reason CloseReason, message string) error
}

// RegisterSession records sess as active under path, and — when both a user
// principal and an HTTP session id are present — additionally indexes it
// under authenticatedSessions so a later policy violation on that HTTP
// session can tear the WebSocket session down too.
func (r *Registry) RegisterSession(path string, sess Session) {
	if sess == nil {
		return
	}

	r.pathsMu.Lock()
	r.registeredPaths[path]++
	r.pathsMu.Unlock()

	httpSessionID := sess.HTTPSessionID()
	if sess.Principal() == "" || httpSessionID == "" {
		return
	}

	r.sessionsMu.Lock()
	bucket, ok := r.authenticatedSessions[httpSessionID]
	if !ok {
		bucket = make(map[Session]struct{})
		r.authenticatedSessions[httpSessionID] = bucket
	}
	bucket[sess] = struct{}{}
	r.sessionsMu.Unlock()
}

// UnregisterSession reverses RegisterSession.
func (r *Registry) UnregisterSession(path string, sess Session) {
	if sess == nil {
		return
	}

	r.pathsMu.Lock()
	if n := r.registeredPaths[path]; n <= 1 {
		delete(r.registeredPaths, path)
	} else {
		r.registeredPaths[path] = n - 1
	}
	r.pathsMu.Unlock()

	httpSessionID := sess.HTTPSessionID()
	if sess.Principal() == "" || httpSessionID == "" {
		return
	}

	r.sessionsMu.Lock()
	if bucket, ok := r.authenticatedSessions[httpSessionID]; ok {
		delete(bucket, sess)
		if len(bucket) == 0 {
			delete(r.authenticatedSessions, httpSessionID)
		}
	}
	r.sessionsMu.Unlock()
}

// CloseAuthenticatedSessions atomically removes every session registered
// under httpSessionID and closes each one with CloseViolatedPolicy. It
// returns the number of sessions closed.
func (r *Registry) CloseAuthenticatedSessions(httpSessionID string) int {
	r.sessionsMu.Lock()
	bucket := r.authenticatedSessions[httpSessionID]
	delete(r.authenticatedSessions, httpSessionID)
	r.sessionsMu.Unlock()

	if bucket == nil {
		return 0
	}

	const reason = "Authenticated HTTP session that has ended"
	for sess := range bucket {
		_ = sess.Close(CloseViolatedPolicy, reason)
	}
	return len(bucket)
}

// RegisteredPathCount reports how many live sessions are currently
// registered under path, for diagnostics.
func (r *Registry) RegisteredPathCount(path string) int {
	r.pathsMu.Lock()
	defer r.pathsMu.Unlock()
	return r.registeredPaths[path]
}
