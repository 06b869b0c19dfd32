// Package datasource maps record CRUD onto a CouchDB-style document store.
//
// Updates and deletes always fetch the live revision first: the store
// rejects any write that does not present its current `_rev`. Store error
// documents are passed through in the Result untouched; there is no retry.
//
// A Source is meant to be driven by one goroutine at a time.
package datasource

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stevemurr/docsource/config"
	"github.com/stevemurr/docsource/metacache"
	"github.com/stevemurr/docsource/metrics"
	"github.com/stevemurr/docsource/transport"
)

// ServiceMarker is the value of the `couchdb` field in the store's welcome
// document.
const ServiceMarker = "Welcome"

// State of the connection owned by a Source.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// TransportFactory builds the transport for a resolved configuration.
type TransportFactory func(config.Connection) (transport.Transport, error)

// Source is a datasource instance.
type Source struct {
	cfg       config.Connection
	state     State
	transport transport.Transport
	factory   TransportFactory
	cache     *metacache.Cache
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Source.
type Option func(*Source)

// WithTransportFactory overrides how the transport is constructed on connect.
func WithTransportFactory(f TransportFactory) Option {
	return func(s *Source) { s.factory = f }
}

// WithCache shares an explicit metadata cache with the source.
func WithCache(c *metacache.Cache) Option {
	return func(s *Source) { s.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Source) { s.log = l }
}

// WithMetrics records operations into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Source) { s.metrics = m }
}

// New creates a disconnected source with cfg merged over the default
// connection parameters.
func New(cfg config.Connection, opts ...Option) *Source {
	s := &Source{
		cfg:   config.DefaultConnection().Merge(cfg),
		cache: metacache.New(),
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.factory == nil {
		log := s.log
		s.factory = func(c config.Connection) (transport.Transport, error) {
			return transport.NewHTTP(c, transport.WithLogger(log))
		}
	}
	return s
}

// Open creates a source and connects it. The returned bool is the
// connection outcome; the source is usable for a later Connect either way.
func Open(ctx context.Context, cfg config.Connection, opts ...Option) (*Source, bool) {
	s := New(cfg, opts...)
	return s, s.Connect(ctx, config.Connection{})
}

// Config returns the effective connection configuration.
func (s *Source) Config() config.Connection {
	return s.cfg
}

// State returns the connection state.
func (s *Source) State() State {
	return s.state
}

// Connected reports whether the source is connected.
func (s *Source) Connected() bool {
	return s.state == Connected
}

// Cache returns the metadata cache.
func (s *Source) Cache() *metacache.Cache {
	return s.cache
}

// ResetCache clears cached listings and descriptions.
func (s *Source) ResetCache() {
	s.cache.Reset()
}

func (s *Source) resolver() Resolver {
	return Resolver{Prefix: s.cfg.Prefix}
}

// FullCollectionName returns the fully qualified name of ref.
func (s *Source) FullCollectionName(ref Collection) string {
	return s.resolver().FullName(ref)
}

// URI returns the collection root path of ref.
func (s *Source) URI(ref Collection) string {
	return s.resolver().URI(ref)
}

func (s *Source) observe(op string, start time.Time, res *Result, err error) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case res != nil && res.Failure() != nil:
		status = "store_error"
	}
	d := time.Since(start)
	s.metrics.RecordOperation(op, status, d)

	ev := s.log.Debug()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev = ev.Str("operation", op).Str("status", status).Dur("duration", d)
	if res != nil {
		ev = ev.Int("http_status", res.Status)
	}
	ev.Msg("operation completed")
}
