package importer

import (
	"context"
	"errors"
	"strings"
)

// ErrAmbiguousIdentity is returned when more than one record carries the same
// identity key. Ambiguity is always an error, never resolved by guessing.
var ErrAmbiguousIdentity = errors.New("ambiguous identity key: multiple records match")

// Resolver maps external ids to internal record ids. The external id is
// embedded in the metadata key name (prefix + external id), not the value,
// because the metadata store only indexes keys. Absence is an expected
// outcome, not an error.
type Resolver struct {
	meta   MetaStore
	prefix string
	cache  IdentityCache
}

// NewResolver creates a resolver over the given prefix. cache may be nil.
func NewResolver(meta MetaStore, prefix string, cache IdentityCache) *Resolver {
	return &Resolver{meta: meta, prefix: prefix, cache: cache}
}

// Prefix returns the reserved key prefix.
func (r *Resolver) Prefix() string { return r.prefix }

// Ref returns the fully prefixed reference for an external id.
func (r *Resolver) Ref(externalID string) string { return r.prefix + externalID }

// IdentKey returns the bare, queryable identity key (the prefix without its
// trailing underscore).
func (r *Resolver) IdentKey() string { return strings.TrimRight(r.prefix, "_") }

// Resolve returns the internal id mapped to externalID. The second return is
// false when no mapping exists.
func (r *Resolver) Resolve(ctx context.Context, externalID string) (int64, bool, error) {
	key := r.Ref(externalID)

	if r.cache != nil {
		if id, ok := r.cache.Get(ctx, key); ok {
			return id, true, nil
		}
	}

	id, found, err := r.meta.FindOwnerByKey(ctx, key)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}

	if r.cache != nil {
		r.cache.Put(ctx, key, id)
	}
	return id, true, nil
}

// Invalidate drops the cached mapping for externalID, if any.
func (r *Resolver) Invalidate(ctx context.Context, externalID string) {
	if r.cache != nil {
		r.cache.Forget(ctx, r.Ref(externalID))
	}
}

// IsExternalRef reports whether candidate is formatted as an external-id
// reference and returns it with the prefix stripped. Exact prefix match only.
func (r *Resolver) IsExternalRef(candidate string) (string, bool) {
	if !strings.HasPrefix(candidate, r.prefix) {
		return "", false
	}
	stripped := candidate[len(r.prefix):]
	if stripped == "" {
		return "", false
	}
	return stripped, true
}
