package registry

import (
	"errors"
	"strings"
	"sync"

	"github.com/rc-ventura/smart-grading-assistant/internal/llm"
	"github.com/rc-ventura/smart-grading-assistant/internal/logging"
)

var (
	ErrClosed     = errors.New("execution context is closed")
	ErrNilFactory = errors.New("registry requires a client factory")
)

// Fingerprint identifies one backend configuration. Acquiring a new
// fingerprint destroys whatever context the previous one had.
type Fingerprint struct {
	Provider string
	Model    string
}

func (f Fingerprint) String() string {
	if strings.TrimSpace(f.Model) == "" {
		return f.Provider
	}
	return f.Provider + "/" + f.Model
}

// ExecutionContext bundles everything one configuration needs to drive
// backend calls: the model client and an in-flight state stash. The
// registry owns its lifecycle; runs only borrow it.
type ExecutionContext struct {
	fp     Fingerprint
	client llm.Client

	mu     sync.Mutex
	stash  map[string]any
	closed bool
}

func (c *ExecutionContext) Fingerprint() Fingerprint { return c.fp }
func (c *ExecutionContext) Client() llm.Client       { return c.client }

// Alive reports whether the context has not been superseded.
func (c *ExecutionContext) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Stash parks a value under key, typically a paused invocation waiting
// for a teacher decision. Fails once the context is closed so stale
// work cannot leak into a successor configuration.
func (c *ExecutionContext) Stash(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.stash == nil {
		c.stash = make(map[string]any)
	}
	c.stash[key] = value
	return nil
}

// Take removes and returns the value under key. Each stashed value can
// be taken exactly once.
func (c *ExecutionContext) Take(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	value, ok := c.stash[key]
	if ok {
		delete(c.stash, key)
	}
	return value, ok
}

func (c *ExecutionContext) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stash = nil
}

// ClientFactory builds the model client for a fingerprint.
type ClientFactory func(fp Fingerprint) (llm.Client, error)

// Registry caches at most one live ExecutionContext: the one for the
// active configuration. Re-acquiring the same fingerprint returns the
// cached context untouched; acquiring a different one destroys the old
// context before the new one is handed out, so in-flight calls under
// the old configuration can never reach state the new one sees.
type Registry struct {
	mu        sync.Mutex
	factory   ClientFactory
	logger    logging.Logger
	current   *ExecutionContext
	creations int
}

func NewRegistry(factory ClientFactory, logger logging.Logger) (*Registry, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{factory: factory, logger: logger}, nil
}

// Acquire returns the execution context for fp, reusing the cached one
// on a fingerprint match. Context creation is observable through the
// log marker and the Creations counter; a cache hit emits neither.
func (r *Registry) Acquire(fp Fingerprint) (*ExecutionContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && r.current.fp == fp && r.current.Alive() {
		return r.current, nil
	}
	if r.current != nil {
		r.logger.Info("destroying execution context", logging.F("fingerprint", r.current.fp.String()))
		r.current.close()
		r.current = nil
	}
	client, err := r.factory(fp)
	if err != nil {
		return nil, err
	}
	r.creations++
	r.logger.Info("created execution context", logging.F("fingerprint", fp.String()))
	r.current = &ExecutionContext{fp: fp, client: client}
	return r.current, nil
}

// Creations reports how many contexts this registry has built. Used to
// tell cache hits from misses in diagnostics.
func (r *Registry) Creations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creations
}

// Close destroys the cached context, if any.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.close()
		r.current = nil
	}
}
