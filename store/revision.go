package store

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var dbNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_$()+-]*$`)

// ValidDBName reports whether name is accepted as a database name.
func ValidDBName(name string) error {
	if !dbNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

// Generation returns the numeric prefix of a revision, 0 when malformed.
func Generation(rev string) int {
	head, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// nextRevision derives the revision following prev. The digest covers the
// previous revision, so identical bodies written twice still differ.
func nextRevision(prev *Document, fields map[string]any, deleted bool) string {
	gen := 1
	prevRev := ""
	if prev != nil {
		gen = Generation(prev.Rev) + 1
		prevRev = prev.Rev
	}
	body, _ := json.Marshal(fields)
	h := md5.New()
	fmt.Fprintf(h, "%s\x00%t\x00", prevRev, deleted)
	h.Write(body)
	return fmt.Sprintf("%d-%x", gen, h.Sum(nil))
}

// checkPut validates rev against the stored document for a write.
func checkPut(prev *Document, rev string) error {
	if prev == nil {
		if rev != "" {
			return ErrConflict
		}
		return nil
	}
	if prev.Deleted {
		if rev != "" && rev != prev.Rev {
			return ErrConflict
		}
		return nil
	}
	if rev != prev.Rev {
		return ErrConflict
	}
	return nil
}

// checkRemove validates rev against the stored document for a delete.
func checkRemove(prev *Document, rev string) error {
	if prev == nil || prev.Deleted {
		return ErrNotFound
	}
	if rev != prev.Rev {
		return ErrConflict
	}
	return nil
}

// decodeBody parses a stored body, keeping number literals intact.
func decodeBody(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepCopy returns a deep copy of a document body by round-tripping through JSON.
func deepCopy(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	b, _ := json.Marshal(src)
	dst, _ := decodeBody(b)
	return dst
}

func copyDoc(d *Document) *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Fields = deepCopy(d.Fields)
	return &c
}
