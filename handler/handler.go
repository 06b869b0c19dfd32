// Package handler serves the CouchDB protocol subset used by the datasource
// adapter on top of a store.Store.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stevemurr/docsource/codec"
	"github.com/stevemurr/docsource/metrics"
	"github.com/stevemurr/docsource/schema"
	"github.com/stevemurr/docsource/store"
)

// Version is reported by the welcome document.
const Version = "3.3.3"

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store   store.Store
	mux     *http.ServeMux
	chain   http.Handler
	user    string
	pass    string
	schemas map[string]schema.Schema
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithAuth requires HTTP basic auth on every request. An empty user
// leaves the server open.
func WithAuth(user, pass string) Option {
	return func(h *Handler) {
		h.user = user
		h.pass = pass
	}
}

// WithSchemas validates every write to the named databases. A document
// that fails validation is rejected with 403 forbidden.
func WithSchemas(schemas map[string]schema.Schema) Option {
	return func(h *Handler) { h.schemas = schemas }
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// New creates a Handler and wires up all routes.
func New(s store.Store, opts ...Option) *Handler {
	h := &Handler{store: s, mux: http.NewServeMux(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	h.routes()
	h.chain = h.instrument(h.authenticate(h.mux))
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.chain.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Server
	h.mux.HandleFunc("GET /{$}", h.welcome)
	h.mux.HandleFunc("GET /_all_dbs", h.allDBs)

	// Databases
	h.mux.HandleFunc("PUT /{db}", h.createDB)
	h.mux.HandleFunc("DELETE /{db}", h.deleteDB)
	h.mux.HandleFunc("GET /{db}", h.dbInfo)
	h.mux.HandleFunc("GET /{db}/{$}", h.dbInfo)
	h.mux.HandleFunc("POST /{db}", h.postDoc)
	h.mux.HandleFunc("GET /{db}/_all_docs", h.allDocs)

	// Documents
	h.mux.HandleFunc("GET /{db}/{docid}", h.getDoc)
	h.mux.HandleFunc("PUT /{db}/{docid}", h.putDoc)
	h.mux.HandleFunc("DELETE /{db}/{docid}", h.deleteDoc)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, reason string) {
	writeJSON(w, status, map[string]string{"error": code, "reason": reason})
}

// writeStoreError maps store errors onto CouchDB error documents.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNoDB):
		writeError(w, http.StatusNotFound, "not_found", "Database does not exist.")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "missing")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "Document update conflict.")
	case errors.Is(err, store.ErrDBExists):
		writeError(w, http.StatusPreconditionFailed, "file_exists",
			"The database could not be created, the file already exists.")
	case errors.Is(err, store.ErrBadName):
		writeError(w, http.StatusBadRequest, "illegal_database_name", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "unknown_error", err.Error())
	}
}

// readBody decodes a JSON object body, keeping number literals intact.
func readBody(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("document must be a JSON object")
	}
	return body, nil
}

// splitSpecial separates _id and _rev from the document fields. Any other
// underscore-prefixed member is rejected.
func splitSpecial(body map[string]any) (id, rev string, fields map[string]any, err error) {
	fields = make(map[string]any, len(body))
	for k, v := range body {
		switch k {
		case "_id":
			id, _ = v.(string)
		case "_rev":
			rev, _ = v.(string)
		default:
			if strings.HasPrefix(k, "_") {
				return "", "", nil, fmt.Errorf("Bad special document member: %s", k)
			}
			fields[k] = v
		}
	}
	return id, rev, fields, nil
}

func docBody(doc *store.Document) map[string]any {
	out := make(map[string]any, len(doc.Fields)+2)
	for k, v := range doc.Fields {
		out[k] = v
	}
	out["_id"] = doc.ID
	out["_rev"] = doc.Rev
	return out
}

func newDocID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ---------- server endpoints ----------

func (h *Handler) welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"couchdb": "Welcome",
		"version": Version,
		"vendor":  map[string]string{"name": "couchsim"},
	})
}

func (h *Handler) allDBs(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.ListDBs()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// ---------- database endpoints ----------

func (h *Handler) createDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.CreateDB(r.PathValue("db")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

func (h *Handler) deleteDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteDB(r.PathValue("db")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) dbInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.store.Info(r.PathValue("db"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) allDocs(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.AllDocs(r.PathValue("db"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	includeDocs := r.URL.Query().Get("include_docs") == "true"
	rows := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		row := map[string]any{
			"id":    doc.ID,
			"key":   doc.ID,
			"value": map[string]string{"rev": doc.Rev},
		}
		if includeDocs {
			row["doc"] = docBody(doc)
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_rows": len(rows),
		"offset":     0,
		"rows":       rows,
	})
}

// ---------- document endpoints ----------

func (h *Handler) postDoc(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	id, rev, fields, err := splitSpecial(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "doc_validation", err.Error())
		return
	}
	if id == "" {
		id = newDocID()
	}
	h.write(w, r.PathValue("db"), id, rev, fields)
}

func (h *Handler) getDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Get(r.PathValue("db"), r.PathValue("docid"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if doc.Deleted {
		writeError(w, http.StatusNotFound, "not_found", "deleted")
		return
	}
	writeJSON(w, http.StatusOK, docBody(doc))
}

func (h *Handler) putDoc(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	_, rev, fields, err := splitSpecial(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "doc_validation", err.Error())
		return
	}
	if q := r.URL.Query().Get("rev"); q != "" {
		if rev != "" && rev != q {
			writeError(w, http.StatusBadRequest, "bad_request",
				"Document rev from request body and query string have different values")
			return
		}
		rev = q
	}
	h.write(w, r.PathValue("db"), r.PathValue("docid"), rev, fields)
}

func (h *Handler) write(w http.ResponseWriter, db, id, rev string, fields map[string]any) {
	if err := h.validate(db, fields); err != nil {
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
		return
	}
	doc, err := h.store.Put(db, id, rev, fields)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": doc.ID, "rev": doc.Rev})
}

func (h *Handler) deleteDoc(w http.ResponseWriter, r *http.Request) {
	rev := r.URL.Query().Get("rev")
	if rev == "" {
		rev = strings.Trim(r.Header.Get("If-Match"), `"`)
	}
	doc, err := h.store.Remove(r.PathValue("db"), r.PathValue("docid"), rev)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": doc.ID, "rev": doc.Rev})
}

func (h *Handler) validate(db string, fields map[string]any) error {
	s, ok := h.schemas[db]
	if !ok {
		return nil
	}
	v, err := codec.FromNative(fields)
	if err != nil {
		return err
	}
	return schema.Validate(s, v)
}
