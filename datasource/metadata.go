package datasource

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stevemurr/docsource/codec"
	"github.com/stevemurr/docsource/metacache"
)

// ListingPath is the store endpoint listing every collection.
const ListingPath = "/_all_dbs"

// ListCollections returns the names of all collections. The first
// successful listing is cached; later calls do not reach the store.
func (s *Source) ListCollections(ctx context.Context) ([]string, error) {
	if names, ok := s.cache.Collections(); ok {
		s.metrics.RecordCache(metacache.KindCollections, true)
		return names, nil
	}
	s.metrics.RecordCache(metacache.KindCollections, false)

	res, err := s.exchange(ctx, "list", http.MethodGet, ListingPath, nil)
	if err != nil {
		return nil, err
	}
	if f := res.Failure(); f != nil {
		return nil, f
	}
	arr, ok := codec.AsArray(res.Body)
	if !ok {
		return nil, fmt.Errorf("datasource: %s returned %s, want array", ListingPath, bodyKind(res.Body))
	}
	names, ok := arr.Strings()
	if !ok {
		return nil, fmt.Errorf("datasource: %s returned non-string names", ListingPath)
	}
	s.cache.SetCollections(names)
	return names, nil
}

// Describe returns the metadata document of a collection. Successful
// descriptions are cached per fully qualified collection name.
func (s *Source) Describe(ctx context.Context, ref Collection) (codec.Object, error) {
	name := s.FullCollectionName(ref)
	if desc, ok := s.cache.Description(name); ok {
		s.metrics.RecordCache(metacache.KindDescribe, true)
		return desc, nil
	}
	s.metrics.RecordCache(metacache.KindDescribe, false)

	res, err := s.Read(ctx, ref)
	if err != nil {
		return nil, err
	}
	if f := res.Failure(); f != nil {
		return nil, f
	}
	desc, ok := codec.AsObject(res.Body)
	if !ok {
		return nil, fmt.Errorf("datasource: describe %s returned %s, want object", name, bodyKind(res.Body))
	}
	s.cache.SetDescription(name, desc)
	return desc, nil
}

func bodyKind(v codec.Value) string {
	if v == nil {
		return codec.KindNull.String()
	}
	return v.Kind().String()
}
