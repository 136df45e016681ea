// Package registry implements the concurrent WebSocket endpoint registry:
// exact and URI-template path matching with first-match tie-breaking,
// put-if-absent insertion, and authenticated-session bookkeeping.
//
// The matching discipline mirrors server.Registry's stream map (RLock-then-
// upgrade read path, double-checked insert), generalized from a single flat
// map to the exact/templated split this registry needs.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	protoerr "github.com/flowcast/rtmp-ingest/internal/errors"
)

// Encoder is implemented by message encoders an endpoint declares. The
// registry only cares that one can be constructed; encoding itself is the
// endpoint's business.
type Encoder interface {
	Encode(v interface{}) ([]byte, error)
}

// EndpointConfig describes one registered WebSocket endpoint.
type EndpointConfig struct {
	// Path is the exact path or URI template ("/rooms/{id}") this endpoint
	// was registered under.
	Path string
	// NewEncoder, if set, is invoked once at registration time to verify the
	// declared encoder is actually instantiable. The returned Encoder is
	// discarded; the endpoint constructs its own encoder per session.
	NewEncoder func() (Encoder, error)
	// BinaryBufferSize and TextBufferSize size the per-session read/write
	// buffers used by the transport layer driving this endpoint.
	BinaryBufferSize int
	TextBufferSize   int
}

// Config controls registry-wide enforcement.
type Config struct {
	// EnforceNoAddAfterHandshake, when true, rejects AddEndpoint calls made
	// after the first FindMapping call.
	EnforceNoAddAfterHandshake bool
}

type templateEntry struct {
	raw      string
	segments []string
	config   *EndpointConfig
}

// Registry is the concurrent path -> EndpointConfig mapping. The zero value
// is not usable; construct with New.
type Registry struct {
	cfg Config

	exact sync.Map // path string -> *EndpointConfig

	templatedMu sync.Mutex
	templated   map[int]*atomic.Pointer[[]*templateEntry] // segment count -> ordered entries

	addAllowed atomic.Bool

	pathsMu         sync.Mutex
	registeredPaths map[string]int

	sessionsMu            sync.Mutex
	authenticatedSessions map[string]map[Session]struct{}
}

// New creates an empty registry. add_endpoint is allowed until the first
// FindMapping call (or forever, if cfg.EnforceNoAddAfterHandshake is false).
func New(cfg Config) *Registry {
	r := &Registry{
		cfg:                   cfg,
		templated:             make(map[int]*atomic.Pointer[[]*templateEntry]),
		registeredPaths:       make(map[string]int),
		authenticatedSessions: make(map[string]map[Session]struct{}),
	}
	r.addAllowed.Store(true)
	return r
}

// AddEndpoint registers cfg under its path. Paths containing {name}
// placeholders are inserted into the templated bucket for their segment
// count, ordered by normalized (lexicographic) path; plain paths go into the
// exact map. Returns a *protoerr.DeploymentError on any rejection.
func (r *Registry) AddEndpoint(cfg *EndpointConfig) error {
	if cfg == nil || cfg.Path == "" {
		return protoerr.NewDeploymentError("AddEndpoint", "MissingAnnotation", fmt.Errorf("endpoint config or path is empty"))
	}
	if r.cfg.EnforceNoAddAfterHandshake && !r.addAllowed.Load() {
		return protoerr.NewDeploymentError("AddEndpoint", "AddNotAllowed", fmt.Errorf("path %q", cfg.Path))
	}
	if cfg.NewEncoder != nil {
		if _, err := cfg.NewEncoder(); err != nil {
			return protoerr.NewDeploymentError("AddEndpoint", "EncoderInvalid", err)
		}
	}

	segs, isTemplate := splitTemplate(cfg.Path)
	if !isTemplate {
		if _, loaded := r.exact.LoadOrStore(cfg.Path, cfg); loaded {
			return protoerr.NewDeploymentError("AddEndpoint", "DuplicatePath", fmt.Errorf("%q", cfg.Path))
		}
		return nil
	}
	return r.addTemplate(cfg.Path, segs, cfg)
}

// addTemplate inserts a template entry into its segment-count bucket using
// put-if-absent for bucket creation and copy-on-write, compare-and-swap
// insertion for the ordered entry list, so concurrent readers never observe
// a torn slice.
func (r *Registry) addTemplate(raw string, segs []string, cfg *EndpointConfig) error {
	bucket := r.bucketFor(len(segs))

	for {
		oldPtr := bucket.Load()
		old := *oldPtr
		for _, e := range old {
			if e.raw == raw {
				return protoerr.NewDeploymentError("AddEndpoint", "DuplicatePath", fmt.Errorf("%q", raw))
			}
		}
		next := make([]*templateEntry, len(old), len(old)+1)
		copy(next, old)
		next = append(next, &templateEntry{raw: raw, segments: segs, config: cfg})
		sort.Slice(next, func(i, j int) bool { return next[i].raw < next[j].raw })
		if bucket.CompareAndSwap(oldPtr, &next) {
			return nil
		}
		// Lost the race against a concurrent insert into the same bucket; retry.
	}
}

// bucketFor returns the atomic entry-list pointer for a segment count,
// creating it with put-if-absent semantics if two callers race to create the
// same bucket.
func (r *Registry) bucketFor(segmentCount int) *atomic.Pointer[[]*templateEntry] {
	r.templatedMu.Lock()
	defer r.templatedMu.Unlock()
	bucket, ok := r.templated[segmentCount]
	if !ok {
		bucket = &atomic.Pointer[[]*templateEntry]{}
		empty := []*templateEntry{}
		bucket.Store(&empty)
		r.templated[segmentCount] = bucket
	}
	return bucket
}

// FindMapping resolves path to its registered endpoint, consulting the exact
// map first and falling back to the templated bucket for path's segment
// count, returning the first template (in normalized order) whose segments
// bind. The first call to FindMapping, regardless of outcome, one-way flips
// add_allowed to false.
func (r *Registry) FindMapping(path string) (*EndpointConfig, map[string]string, bool) {
	r.addAllowed.Store(false)

	if v, ok := r.exact.Load(path); ok {
		return v.(*EndpointConfig), nil, true
	}

	pathSegs, _ := splitTemplate(path)
	r.templatedMu.Lock()
	bucket := r.templated[len(pathSegs)]
	r.templatedMu.Unlock()
	if bucket == nil {
		return nil, nil, false
	}

	for _, e := range *bucket.Load() {
		if params, ok := matchTemplate(e.segments, pathSegs); ok {
			return e.config, params, true
		}
	}
	return nil, nil, false
}

// AddAllowed reports whether AddEndpoint calls are still accepted under
// EnforceNoAddAfterHandshake. Exposed for diagnostics and tests.
func (r *Registry) AddAllowed() bool { return r.addAllowed.Load() }
