package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stevemurr/docsource/codec"
	"github.com/stevemurr/docsource/transport"
)

// IDField is the record field holding the caller-side identifier.
const IDField = "id"

// RevField is the document field holding the store revision.
const RevField = "_rev"

// Record is a caller's record: field name to value.
type Record map[string]any

// Fields builds a record from parallel field and value slices.
func Fields(fields []string, values []any) (Record, error) {
	if len(fields) != len(values) {
		return nil, fmt.Errorf("%w: %d fields, %d values", ErrFieldMismatch, len(fields), len(values))
	}
	rec := make(Record, len(fields))
	for i, f := range fields {
		rec[f] = values[i]
	}
	return rec, nil
}

// ID returns the record's identifier. Nil and empty identifiers count as absent.
func (r Record) ID() (string, bool) {
	v, ok := r[IDField]
	if !ok || v == nil {
		return "", false
	}
	id, isString := v.(string)
	if !isString {
		id = fmt.Sprint(v)
	}
	return id, id != ""
}

// without returns a shallow copy of r minus the given keys.
func (r Record) without(keys ...string) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// hasID is the upsert decision: a record that names its identifier is
// written to that identifier instead of being inserted under a new one.
func hasID(r Record) bool {
	_, ok := r.ID()
	return ok
}

// Create inserts rec into ref. A record carrying an identifier is an upsert
// and goes through Update.
func (s *Source) Create(ctx context.Context, ref Collection, rec Record) (*Result, error) {
	if hasID(rec) {
		return s.Update(ctx, ref, rec)
	}
	body, err := codec.Encode(rec.without(IDField))
	if err != nil {
		return nil, err
	}
	return s.exchange(ctx, "create", http.MethodPost, s.URI(ref), body)
}

// Read fetches the path built from ref and parts: a single identifier reads
// a document, `_all_docs` lists the collection, no parts reads the
// collection's own metadata.
func (s *Source) Read(ctx context.Context, ref Collection, parts ...string) (*Result, error) {
	return s.exchange(ctx, "read", http.MethodGet, s.resolver().PathURI(ref, parts...), nil)
}

// Update writes rec over the document named by its identifier, stamped with
// the revision read immediately before the write. The caller's own `_rev`
// is ignored.
func (s *Source) Update(ctx context.Context, ref Collection, rec Record) (*Result, error) {
	id, ok := rec.ID()
	if !ok {
		return nil, ErrMissingID
	}
	current, err := s.Read(ctx, ref, id)
	if err != nil {
		return nil, err
	}
	rev, proceed := liveRevision(current)
	if !proceed {
		return current, nil
	}

	payload := rec.without(IDField, RevField)
	if rev != "" {
		payload[RevField] = rev
	}
	body, err := codec.Encode(payload)
	if err != nil {
		return nil, err
	}
	return s.exchange(ctx, "update", http.MethodPut, s.resolver().RecordURI(ref, id), body)
}

// Delete removes the document id from ref using its live revision.
func (s *Source) Delete(ctx context.Context, ref Collection, id string) (*Result, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	current, err := s.Read(ctx, ref, id)
	if err != nil {
		return nil, err
	}
	if current.Failure() != nil {
		return current, nil
	}
	uri := s.resolver().RecordURI(ref, id) + "?" + url.Values{"rev": {current.DocRev()}}.Encode()
	return s.exchange(ctx, "delete", http.MethodDelete, uri, nil)
}

// DeleteRecord deletes the document named by rec's identifier.
func (s *Source) DeleteRecord(ctx context.Context, ref Collection, rec Record) (*Result, error) {
	id, _ := rec.ID()
	return s.Delete(ctx, ref, id)
}

// liveRevision extracts the revision to present on the next write. A missing
// or deleted document yields an empty revision, which creates it. Any other
// failure stops the write and is handed back to the caller.
func liveRevision(current *Result) (string, bool) {
	f := current.Failure()
	if f == nil {
		return current.DocRev(), true
	}
	if f.IsNotFound() {
		return "", true
	}
	return "", false
}

func (s *Source) exchange(ctx context.Context, op, method, uri string, body []byte) (res *Result, err error) {
	start := time.Now()
	defer func() { s.observe(op, start, res, err) }()

	if s.state != Connected || s.transport == nil {
		return nil, ErrNotConnected
	}

	var resp *transport.Response
	switch method {
	case http.MethodGet:
		resp, err = s.transport.Get(ctx, uri)
	case http.MethodPost:
		resp, err = s.transport.Post(ctx, uri, body)
	case http.MethodPut:
		resp, err = s.transport.Put(ctx, uri, body)
	case http.MethodDelete:
		resp, err = s.transport.Delete(ctx, uri)
	default:
		return nil, fmt.Errorf("datasource: unsupported method %s", method)
	}
	if err != nil {
		return nil, &TransportError{Op: method, URI: uri, Err: err}
	}
	return newResult(resp.Status, resp.Body), nil
}
