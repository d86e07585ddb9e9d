// Package resolver defines the pluggable per-source metadata resolver
// contract and the scheme registry that dispatches to it.
package resolver

import (
	"context"

	"github.com/mdpress/presto/internal/domain"
)

// Ref identifies the resource a resolver should describe. URL and
// Fingerprint come from identity resolution; Path is the identifier
// with its scheme tag stripped.
type Ref struct {
	Identifier  string
	Path        string
	URL         string
	Fingerprint string
}

// Resolver produces a normalized MetadataRecord for one source scheme.
// Implementations must be safe to call concurrently with a derivative
// pipeline run for the same identifier and must not mutate shared
// state.
type Resolver interface {
	FetchMetadata(ctx context.Context, ref Ref) (domain.MetadataRecord, error)
}

// Registry maps scheme tags to resolvers.
type Registry struct {
	resolvers map[string]Resolver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

// Register adds or replaces the resolver for a scheme.
func (r *Registry) Register(scheme string, res Resolver) {
	r.resolvers[scheme] = res
}

// Lookup returns the resolver for a scheme.
func (r *Registry) Lookup(scheme string) (Resolver, bool) {
	res, ok := r.resolvers[scheme]
	return res, ok
}
