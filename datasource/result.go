package datasource

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stevemurr/docsource/codec"
)

var (
	// ErrNotConnected is returned by operations on a disconnected source.
	ErrNotConnected = errors.New("datasource: not connected")
	// ErrMissingID is returned when update or delete is called without an identifier.
	ErrMissingID = errors.New("datasource: record identifier required")
	// ErrFieldMismatch is returned by Fields when the slices differ in length.
	ErrFieldMismatch = errors.New("datasource: fields and values differ in length")
)

// TransportError wraps a failure to complete an exchange with the store.
type TransportError struct {
	Op  string
	URI string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URI, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StoreError is an error document returned by the store.
type StoreError struct {
	Status int    `json:"status_code"`
	Code   string `json:"error"`
	Reason string `json:"reason"`
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (status %d): %s - %s", e.Status, e.Code, e.Reason)
}

// IsConflict reports a stale or missing revision.
func (e *StoreError) IsConflict() bool {
	return e.Code == "conflict" || e.Status == http.StatusConflict
}

// IsNotFound reports a missing document or collection.
func (e *StoreError) IsNotFound() bool {
	return e.Code == "not_found" || e.Status == http.StatusNotFound
}

// IsDeleted reports a read of a tombstone.
func (e *StoreError) IsDeleted() bool {
	return e.IsNotFound() && e.Reason == "deleted"
}

// Result is the decoded outcome of one exchange with the store. Error
// documents are not converted to Go errors; Failure exposes them.
type Result struct {
	Status int
	Body   codec.Value
}

func newResult(status int, body []byte) *Result {
	return &Result{Status: status, Body: codec.Decode(body)}
}

// Doc returns the body as an object, or an empty object for any other shape.
func (r *Result) Doc() codec.Object {
	if o, ok := codec.AsObject(r.Body); ok {
		return o
	}
	return codec.Object{}
}

// Failure returns the store-reported error carried by the response, if any.
// A 2xx or 3xx reply is never a failure, even when the document has its own
// `error` field. Without a status the body alone decides.
func (r *Result) Failure() *StoreError {
	if r.Status > 0 && r.Status < 400 {
		return nil
	}
	doc := r.Doc()
	code, hasCode := doc.Str("error")
	if !hasCode && !doc.Has("error") {
		if r.Status >= 400 {
			return &StoreError{Status: r.Status, Code: http.StatusText(r.Status)}
		}
		return nil
	}
	reason, _ := doc.Str("reason")
	return &StoreError{Status: r.Status, Code: code, Reason: reason}
}

// OK reports a successful write (`ok: true`) or a successful read.
func (r *Result) OK() bool {
	if codec.IsNull(r.Body) || r.Failure() != nil {
		return false
	}
	doc := r.Doc()
	if doc.Has(RevField) {
		return true
	}
	if ok, present := doc.Bool("ok"); present {
		return ok
	}
	return true
}

// ID returns the document id from a document (`_id`) or a write reply (`id`).
func (r *Result) ID() string {
	doc := r.Doc()
	if id, ok := doc.Str("_id"); ok {
		return id
	}
	id, _ := doc.Str("id")
	return id
}

// Rev returns the revision from a document (`_rev`) or a write reply (`rev`).
// Documents always carry `_rev`, so a user field named `rev` never shadows it.
func (r *Result) Rev() string {
	doc := r.Doc()
	if rev, ok := doc.Str(RevField); ok {
		return rev
	}
	rev, _ := doc.Str("rev")
	return rev
}

// DocRev returns the `_rev` of a document body, ignoring reply keys.
func (r *Result) DocRev() string {
	rev, _ := r.Doc().Str(RevField)
	return rev
}

// Record converts the body back into a plain record.
func (r *Result) Record() Record {
	if m, ok := codec.Native(r.Body).(map[string]any); ok {
		return Record(m)
	}
	return nil
}
