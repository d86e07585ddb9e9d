package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mdpress/presto/internal/domain"
	"github.com/mdpress/presto/internal/resolver"
)

// Service generates IIIF Presentation 3 manifests. Each call resolves
// the identifier, consults the manifest cache, and on a miss fans out
// to the metadata resolver and the derivative pipeline concurrently
// before assembling and caching the merged document.
type Service struct {
	ids          Identities
	meta         Metadata
	derivatives  Derivatives
	cache        Cache
	baseURL      string
	imageService string
	logger       *zap.Logger
	builds       *prometheus.CounterVec
}

// Option configures a Service.
type Option func(*Service)

// WithBuildCounter counts manifest requests, labeled by outcome
// (cached, built, refreshed).
func WithBuildCounter(c *prometheus.CounterVec) Option {
	return func(s *Service) { s.builds = c }
}

// New creates a manifest service. baseURL is the public prefix for
// manifest and canvas identifiers; imageServiceURL is the deep-zoom
// endpoint referenced by image annotation bodies.
func New(ids Identities, meta Metadata, derivatives Derivatives, cache Cache, baseURL, imageServiceURL string, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		ids:          ids,
		meta:         meta,
		derivatives:  derivatives,
		cache:        cache,
		baseURL:      baseURL,
		imageService: imageServiceURL,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetManifest returns the manifest for an identifier. refresh bypasses
// the cache read and forces the pipeline to redo its work, but the
// rebuilt document is still written back.
func (s *Service) GetManifest(ctx context.Context, identifier string, refresh bool) (*domain.Manifest, error) {
	res, err := s.ids.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if !refresh {
		if m, ok := s.cached(ctx, res.Fingerprint); ok {
			s.count("cached")
			return m, nil
		}
	}

	ref := resolver.Ref{
		Identifier:  identifier,
		Path:        pathOf(identifier),
		URL:         res.URL,
		Fingerprint: res.Fingerprint,
	}
	return s.build(ctx, identifier, res.URL, res.Fingerprint, refresh,
		func(ctx context.Context) (domain.MetadataRecord, error) {
			return s.fetchMetadata(ctx, res.Scheme, ref)
		})
}

// CreateManifest builds a manifest from a caller-supplied property
// object. props must carry a url; every other field is optional and
// mapped the way object metadata normally is.
func (s *Service) CreateManifest(ctx context.Context, props map[string]any, refresh bool) (*domain.Manifest, error) {
	sourceURL, _ := lookupString(props, "url")
	if sourceURL == "" {
		return nil, fmt.Errorf("payload missing url: %w", domain.ErrUnsupportedIdentifier)
	}

	res, err := s.ids.Resolve(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	if !refresh {
		if m, ok := s.cached(ctx, res.Fingerprint); ok {
			s.count("cached")
			return m, nil
		}
	}

	obj := resolver.Object{Props: props}
	return s.build(ctx, res.Fingerprint, res.URL, res.Fingerprint, refresh,
		func(ctx context.Context) (domain.MetadataRecord, error) {
			return obj.FetchMetadata(ctx, resolver.Ref{
				URL:         res.URL,
				Fingerprint: res.Fingerprint,
			})
		})
}

// Thumbnail returns the thumbnail URL for an identifier.
func (s *Service) Thumbnail(ctx context.Context, identifier string, refresh bool) (string, error) {
	m, err := s.GetManifest(ctx, identifier, refresh)
	if err != nil {
		return "", err
	}
	if len(m.Thumbnail) == 0 {
		return "", fmt.Errorf("no thumbnail for %s: %w", identifier, domain.ErrNotFound)
	}
	return m.Thumbnail[0].ID, nil
}

// build fans out the metadata lookup and the derivative pipeline,
// applies the partial failure policy, assembles, and writes back.
func (s *Service) build(ctx context.Context, manifestID, sourceURL, fingerprint string, refresh bool, fetchMeta func(context.Context) (domain.MetadataRecord, error)) (*domain.Manifest, error) {
	var (
		rec      domain.MetadataRecord
		metaErr  error
		deriv    domain.DerivativeRecord
		derivErr error
	)

	// Errors are captured per branch, never returned through the
	// group, so a metadata failure cannot cancel the pipeline branch
	// or vice versa.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, metaErr = fetchMeta(gctx)
		return nil
	})
	g.Go(func() error {
		deriv, _, derivErr = s.derivatives.Run(gctx, sourceURL, fingerprint, refresh)
		return nil
	})
	_ = g.Wait()

	if metaErr != nil {
		s.logger.Warn("metadata lookup failed",
			zap.String("identifier", manifestID), zap.Error(metaErr))
		rec = resolver.RecordFromObject(nil, sourceURL)
	}
	if derivErr != nil {
		s.logger.Warn("derivative pipeline failed",
			zap.String("identifier", manifestID), zap.Error(derivErr))
		deriv = domain.DerivativeRecord{SourceURL: sourceURL}
	}
	if metaErr != nil && derivErr != nil {
		return nil, fmt.Errorf("%s: %w", manifestID, domain.ErrAllResolversFailed)
	}

	m := assemble(assembleInput{
		BaseURL:         s.baseURL,
		ImageServiceURL: s.imageService,
		ManifestID:      manifestID,
		Fingerprint:     fingerprint,
		Meta:            rec,
		Deriv:           deriv,
	})

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := s.cache.Put(ctx, fingerprint, raw); err != nil {
		return nil, fmt.Errorf("cache manifest: %v: %w", err, domain.ErrCacheBackend)
	}

	if refresh {
		s.count("refreshed")
	} else {
		s.count("built")
	}
	return m, nil
}

// fetchMetadata dispatches to the scheme's resolver. A plain URL has
// no resolver and gets a default record derived from the URL itself.
func (s *Service) fetchMetadata(ctx context.Context, scheme string, ref resolver.Ref) (domain.MetadataRecord, error) {
	r, ok := s.meta.Lookup(scheme)
	if !ok {
		return resolver.RecordFromObject(nil, ref.URL), nil
	}
	return r.FetchMetadata(ctx, ref)
}

// cached loads a previously assembled manifest. Any cache error is a
// miss; the durable store gets another chance on the write-back.
func (s *Service) cached(ctx context.Context, fingerprint string) (*domain.Manifest, bool) {
	raw, err := s.cache.Get(ctx, fingerprint)
	if err != nil {
		return nil, false
	}
	var m domain.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		s.logger.Warn("cached manifest decode failed",
			zap.String("fingerprint", fingerprint), zap.Error(err))
		return nil, false
	}
	return &m, true
}

func (s *Service) count(result string) {
	if s.builds != nil {
		s.builds.WithLabelValues(result).Inc()
	}
}

// pathOf strips the scheme tag from an identifier.
func pathOf(identifier string) string {
	for _, scheme := range []string{"gh:", "wc:", "wd:"} {
		if len(identifier) > len(scheme) && identifier[:len(scheme)] == scheme {
			return identifier[len(scheme):]
		}
	}
	return identifier
}

func lookupString(props map[string]any, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
