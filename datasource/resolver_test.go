package datasource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stevemurr/docsource/datasource"
)

func TestResolver(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		ref       datasource.Collection
		full      string
		uri       string
		recordURI string
	}{
		{"bare", "", datasource.Name("posts"), "posts", "/posts", "/posts/k"},
		{"instance prefix", "app_", datasource.Name("posts"), "app_posts", "/app_posts", "/app_posts/k"},
		{"table prefix", "app_", datasource.Table{Prefix: "blog_", Name: "posts"}, "blog_posts", "/blog_posts", "/blog_posts/k"},
		{"table without prefix", "app_", datasource.Table{Name: "posts"}, "posts", "/posts", "/posts/k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := datasource.Resolver{Prefix: tt.prefix}
			assert.Equal(t, tt.full, r.FullName(tt.ref))
			assert.Equal(t, tt.uri, r.URI(tt.ref))
			assert.Equal(t, tt.recordURI, r.RecordURI(tt.ref, "k"))
		})
	}
}

func TestResolverEscaping(t *testing.T) {
	r := datasource.Resolver{}
	ref := datasource.Name("posts")

	assert.Equal(t, "/posts/a%2Fb", r.RecordURI(ref, "a/b"))
	assert.Equal(t, "/posts/hello%20world", r.RecordURI(ref, "hello world"))
	assert.Equal(t, "/posts/%3Fq", r.RecordURI(ref, "?q"))
	assert.Equal(t, "/posts/", r.PathURI(ref))
	assert.Equal(t, "/posts/_all_docs", r.PathURI(ref, "_all_docs"))
	assert.Equal(t, "/posts/_design/by%20date", r.PathURI(ref, "_design", "by date"))
}

func TestResolverNilRef(t *testing.T) {
	assert.Equal(t, "", datasource.Resolver{Prefix: "x_"}.FullName(nil))
}
