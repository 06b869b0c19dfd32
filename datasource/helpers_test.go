package datasource_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stevemurr/docsource/config"
	"github.com/stevemurr/docsource/datasource"
	"github.com/stevemurr/docsource/handler"
	"github.com/stevemurr/docsource/store"
	"github.com/stevemurr/docsource/transport"
)

type call struct {
	Method string
	Path   string
	Body   []byte
}

// recordingTransport wraps a real transport and records every exchange.
type recordingTransport struct {
	transport.Transport

	mu        sync.Mutex
	calls     []call
	beforePut func()
}

func (r *recordingTransport) record(method, path string, body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{Method: method, Path: path, Body: body})
}

func (r *recordingTransport) Get(ctx context.Context, path string) (*transport.Response, error) {
	r.record("GET", path, nil)
	return r.Transport.Get(ctx, path)
}

func (r *recordingTransport) Post(ctx context.Context, path string, body []byte) (*transport.Response, error) {
	r.record("POST", path, body)
	return r.Transport.Post(ctx, path, body)
}

func (r *recordingTransport) Put(ctx context.Context, path string, body []byte) (*transport.Response, error) {
	r.record("PUT", path, body)
	if r.beforePut != nil {
		r.beforePut()
	}
	return r.Transport.Put(ctx, path, body)
}

func (r *recordingTransport) Delete(ctx context.Context, path string) (*transport.Response, error) {
	r.record("DELETE", path, nil)
	return r.Transport.Delete(ctx, path)
}

// Calls returns "METHOD path" for every exchange so far.
func (r *recordingTransport) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Method + " " + c.Path
	}
	return out
}

func (r *recordingTransport) Count(method, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (r *recordingTransport) Last(method string) call {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].Method == method {
			return r.calls[i]
		}
	}
	return call{}
}

func (r *recordingTransport) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

type fixture struct {
	server *httptest.Server
	store  store.Store
	rt     *recordingTransport
	src    *datasource.Source
}

func connFor(t *testing.T, raw string) config.Connection {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return config.Connection{Scheme: u.Scheme, Host: u.Hostname(), Port: u.Port()}
}

func recordingFactory(f *fixture) datasource.TransportFactory {
	return func(c config.Connection) (transport.Transport, error) {
		h, err := transport.NewHTTP(c)
		if err != nil {
			return nil, err
		}
		f.rt = &recordingTransport{Transport: h}
		return f.rt, nil
	}
}

// newFixture starts an in-memory emulator holding dbs and returns a
// connected source talking to it. The recorder is reset after connecting.
func newFixture(t *testing.T, cfg config.Connection, dbs ...string) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	for _, db := range dbs {
		require.NoError(t, st.CreateDB(db))
	}
	ts := httptest.NewServer(handler.New(st))
	t.Cleanup(ts.Close)

	f := &fixture{server: ts, store: st}
	cfg = connFor(t, ts.URL).Merge(cfg)
	f.src = datasource.New(cfg, datasource.WithTransportFactory(recordingFactory(f)))
	require.True(t, f.src.Connect(context.Background(), config.Connection{}))
	f.rt.Reset()
	return f
}

// stubTransport answers from canned responses keyed by "METHOD path". The
// welcome document is served for GET / unless overridden.
type stubTransport struct {
	responses map[string]*transport.Response
	calls     []string
}

func (s *stubTransport) respond(method, path string) (*transport.Response, error) {
	key := method + " " + path
	s.calls = append(s.calls, key)
	if r, ok := s.responses[key]; ok {
		return r, nil
	}
	if key == "GET /" {
		return &transport.Response{Status: 200, Body: []byte(`{"couchdb":"Welcome","version":"3.3.3"}`)}, nil
	}
	return &transport.Response{Status: 404, Body: []byte(`{"error":"not_found","reason":"missing"}`)}, nil
}

func (s *stubTransport) Get(_ context.Context, path string) (*transport.Response, error) {
	return s.respond("GET", path)
}

func (s *stubTransport) Post(_ context.Context, path string, _ []byte) (*transport.Response, error) {
	return s.respond("POST", path)
}

func (s *stubTransport) Put(_ context.Context, path string, _ []byte) (*transport.Response, error) {
	return s.respond("PUT", path)
}

func (s *stubTransport) Delete(_ context.Context, path string) (*transport.Response, error) {
	return s.respond("DELETE", path)
}

func connectedStub(t *testing.T, stub *stubTransport, opts ...datasource.Option) *datasource.Source {
	t.Helper()
	opts = append(opts, datasource.WithTransportFactory(func(config.Connection) (transport.Transport, error) {
		return stub, nil
	}))
	src := datasource.New(config.Connection{}, opts...)
	require.True(t, src.Connect(context.Background(), config.Connection{}))
	return src
}
