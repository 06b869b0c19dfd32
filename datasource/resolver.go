package datasource

import (
	"net/url"
	"strings"
)

// Collection identifies a logical group of records.
type Collection interface {
	collectionName(instancePrefix string) string
}

// Name is a bare collection name. The instance prefix, when configured, is
// prepended to it.
type Name string

func (n Name) collectionName(prefix string) string {
	return prefix + string(n)
}

// Table is a collection reference that carries its own prefix, the way a
// model describes its table. The instance prefix does not apply.
type Table struct {
	Prefix string
	Name   string
}

func (t Table) collectionName(string) string {
	return t.Prefix + t.Name
}

// Resolver maps collection references onto store paths. It performs no I/O.
type Resolver struct {
	Prefix string
}

// FullName returns the fully qualified collection name.
func (r Resolver) FullName(ref Collection) string {
	if ref == nil {
		return ""
	}
	return ref.collectionName(r.Prefix)
}

// URI returns the collection root path.
func (r Resolver) URI(ref Collection) string {
	return "/" + r.FullName(ref)
}

// RecordURI returns the path of a single record.
func (r Resolver) RecordURI(ref Collection, id string) string {
	return r.URI(ref) + "/" + url.PathEscape(id)
}

// PathURI joins escaped parts under the collection root. With no parts it
// returns the root with a trailing slash, which addresses the collection's
// own metadata document.
func (r Resolver) PathURI(ref Collection, parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return r.URI(ref) + "/" + strings.Join(escaped, "/")
}
