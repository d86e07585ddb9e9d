package manifest

import (
	"context"

	"github.com/mdpress/presto/internal/domain"
	"github.com/mdpress/presto/internal/identity"
	"github.com/mdpress/presto/internal/pipeline"
	"github.com/mdpress/presto/internal/resolver"
)

// Identities canonicalizes identifiers into source URLs and
// fingerprints.
type Identities interface {
	Resolve(ctx context.Context, identifier string) (identity.Resolved, error)
}

// Metadata looks up the per-scheme metadata resolver.
type Metadata interface {
	Lookup(scheme string) (resolver.Resolver, bool)
}

// Derivatives runs the derivative pipeline for one source.
type Derivatives interface {
	Run(ctx context.Context, sourceURL, fingerprint string, refresh bool) (domain.DerivativeRecord, pipeline.State, error)
}

// Cache stores assembled manifests keyed by fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}
