package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mdpress/presto/internal/domain"
	"github.com/mdpress/presto/internal/identity"
	"github.com/mdpress/presto/internal/pipeline"
	"github.com/mdpress/presto/internal/resolver"
)

type mockIdentities struct {
	resolve func(ctx context.Context, identifier string) (identity.Resolved, error)
}

func (m *mockIdentities) Resolve(ctx context.Context, identifier string) (identity.Resolved, error) {
	return m.resolve(ctx, identifier)
}

type mockMetadata struct {
	resolvers map[string]resolver.Resolver
}

func (m *mockMetadata) Lookup(scheme string) (resolver.Resolver, bool) {
	r, ok := m.resolvers[scheme]
	return r, ok
}

type resolverFunc func(ctx context.Context, ref resolver.Ref) (domain.MetadataRecord, error)

func (f resolverFunc) FetchMetadata(ctx context.Context, ref resolver.Ref) (domain.MetadataRecord, error) {
	return f(ctx, ref)
}

type mockDerivatives struct {
	run  func(ctx context.Context, sourceURL, fingerprint string, refresh bool) (domain.DerivativeRecord, pipeline.State, error)
	runs int
}

func (m *mockDerivatives) Run(ctx context.Context, sourceURL, fingerprint string, refresh bool) (domain.DerivativeRecord, pipeline.State, error) {
	m.runs++
	return m.run(ctx, sourceURL, fingerprint, refresh)
}

type mockCache struct {
	values map[string][]byte
	getErr error
	putErr error
	puts   int
}

func newMockCache() *mockCache { return &mockCache{values: map[string][]byte{}} }

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *mockCache) Put(_ context.Context, key string, value []byte) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.values[key] = value
	return nil
}

func fixedIdentities() *mockIdentities {
	return &mockIdentities{resolve: func(_ context.Context, identifier string) (identity.Resolved, error) {
		if strings.HasPrefix(identifier, "bogus:") {
			return identity.Resolved{}, domain.ErrUnsupportedIdentifier
		}
		return identity.Resolved{
			Scheme:      "gh",
			URL:         "https://raw.githubusercontent.com/acct/repo/main/photo.jpg",
			Fingerprint: "fp1",
		}, nil
	}}
}

func imageDerivatives() *mockDerivatives {
	return &mockDerivatives{run: func(_ context.Context, sourceURL, _ string, _ bool) (domain.DerivativeRecord, pipeline.State, error) {
		return domain.DerivativeRecord{
			Kind:      domain.KindImage,
			Format:    "image/jpeg",
			Width:     3000,
			Height:    2000,
			ObjectKey: "fp1.tif",
			SourceURL: sourceURL,
		}, pipeline.StateConverted, nil
	}}
}

func ghMetadata(rec domain.MetadataRecord, err error) *mockMetadata {
	return &mockMetadata{resolvers: map[string]resolver.Resolver{
		"gh": resolverFunc(func(context.Context, resolver.Ref) (domain.MetadataRecord, error) {
			return rec, err
		}),
	}}
}

func TestGetManifestBuildsAndCaches(t *testing.T) {
	cache := newMockCache()
	derivs := imageDerivatives()
	svc := New(fixedIdentities(),
		ghMetadata(domain.MetadataRecord{Label: "A Photo"}, nil),
		derivs, cache, "https://iiif.example.org", "https://tiles.example.org", nil)

	m, err := svc.GetManifest(context.Background(), "gh:acct/repo/photo.jpg", false)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if got := m.Label.First("none"); got != "A Photo" {
		t.Errorf("label = %q", got)
	}
	if derivs.runs != 1 {
		t.Errorf("pipeline runs = %d", derivs.runs)
	}
	if _, ok := cache.values["fp1"]; !ok {
		t.Error("manifest not cached under fingerprint")
	}

	var cached domain.Manifest
	if err := json.Unmarshal(cache.values["fp1"], &cached); err != nil {
		t.Fatalf("cached manifest: %v", err)
	}
	if cached.ID != m.ID {
		t.Errorf("cached ID = %q, want %q", cached.ID, m.ID)
	}
}

func TestGetManifestCacheHitSkipsWork(t *testing.T) {
	cache := newMockCache()
	cache.values["fp1"] = []byte(`{"id":"cached","type":"Manifest","label":{"none":["hit"]}}`)
	derivs := imageDerivatives()
	svc := New(fixedIdentities(), &mockMetadata{}, derivs, cache,
		"https://iiif.example.org", "https://tiles.example.org", nil)

	m, err := svc.GetManifest(context.Background(), "gh:acct/repo/photo.jpg", false)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if m.ID != "cached" {
		t.Errorf("ID = %q", m.ID)
	}
	if derivs.runs != 0 {
		t.Errorf("pipeline ran %d times on a cache hit", derivs.runs)
	}
	if cache.puts != 0 {
		t.Errorf("puts = %d on a cache hit", cache.puts)
	}
}

func TestGetManifestRefreshBypassesRead(t *testing.T) {
	cache := newMockCache()
	cache.values["fp1"] = []byte(`{"id":"stale","type":"Manifest","label":{"none":["old"]}}`)
	derivs := imageDerivatives()
	svc := New(fixedIdentities(),
		ghMetadata(domain.MetadataRecord{Label: "Fresh"}, nil),
		derivs, cache, "https://iiif.example.org", "https://tiles.example.org", nil)

	m, err := svc.GetManifest(context.Background(), "gh:acct/repo/photo.jpg", true)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if got := m.Label.First("none"); got != "Fresh" {
		t.Errorf("label = %q, want rebuilt manifest", got)
	}
	if derivs.runs != 1 {
		t.Errorf("pipeline runs = %d", derivs.runs)
	}
	if cache.puts != 1 {
		t.Errorf("puts = %d, want write-back on refresh", cache.puts)
	}
}

func TestGetManifestMetadataFailureFallsBack(t *testing.T) {
	svc := New(fixedIdentities(),
		ghMetadata(domain.MetadataRecord{}, errors.New("api down")),
		imageDerivatives(), newMockCache(),
		"https://iiif.example.org", "https://tiles.example.org", nil)

	m, err := svc.GetManifest(context.Background(), "gh:acct/repo/photo.jpg", false)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	// Default record labels from the URL's last path segment.
	if got := m.Label.First("none"); got != "photo" {
		t.Errorf("label = %q", got)
	}
	if m.Items[0].Width != 3000 {
		t.Errorf("canvas width = %d, pipeline result lost", m.Items[0].Width)
	}
}

func TestGetManifestPipelineFailureFallsBack(t *testing.T) {
	derivs := &mockDerivatives{run: func(context.Context, string, string, bool) (domain.DerivativeRecord, pipeline.State, error) {
		return domain.DerivativeRecord{}, pipeline.StateFetchFailed, domain.ErrUpstreamFetch
	}}
	svc := New(fixedIdentities(),
		ghMetadata(domain.MetadataRecord{Label: "A Photo"}, nil),
		derivs, newMockCache(),
		"https://iiif.example.org", "https://tiles.example.org", nil)

	m, err := svc.GetManifest(context.Background(), "gh:acct/repo/photo.jpg", false)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if got := m.Label.First("none"); got != "A Photo" {
		t.Errorf("label = %q", got)
	}
	body := m.Items[0].Items[0].Items[0].Body
	if len(body.Service) != 0 {
		t.Errorf("unexpected image service without derivative")
	}
}

func TestGetManifestBothBranchesFail(t *testing.T) {
	derivs := &mockDerivatives{run: func(context.Context, string, string, bool) (domain.DerivativeRecord, pipeline.State, error) {
		return domain.DerivativeRecord{}, pipeline.StateFetchFailed, domain.ErrUpstreamFetch
	}}
	svc := New(fixedIdentities(),
		ghMetadata(domain.MetadataRecord{}, errors.New("api down")),
		derivs, newMockCache(),
		"https://iiif.example.org", "https://tiles.example.org", nil)

	_, err := svc.GetManifest(context.Background(), "gh:acct/repo/photo.jpg", false)
	if !errors.Is(err, domain.ErrAllResolversFailed) {
		t.Fatalf("err = %v, want ErrAllResolversFailed", err)
	}
}

func TestGetManifestCachePutFailure(t *testing.T) {
	cache := newMockCache()
	cache.putErr = errors.New("store down")
	svc := New(fixedIdentities(),
		ghMetadata(domain.MetadataRecord{Label: "A Photo"}, nil),
		imageDerivatives(), cache,
		"https://iiif.example.org", "https://tiles.example.org", nil)

	_, err := svc.GetManifest(context.Background(), "gh:acct/repo/photo.jpg", false)
	if !errors.Is(err, domain.ErrCacheBackend) {
		t.Fatalf("err = %v, want ErrCacheBackend", err)
	}
}

func TestGetManifestUnsupportedIdentifier(t *testing.T) {
	svc := New(fixedIdentities(), &mockMetadata{}, imageDerivatives(), newMockCache(),
		"https://iiif.example.org", "https://tiles.example.org", nil)

	_, err := svc.GetManifest(context.Background(), "bogus:thing", false)
	if !errors.Is(err, domain.ErrUnsupportedIdentifier) {
		t.Fatalf("err = %v, want ErrUnsupportedIdentifier", err)
	}
}

func TestCreateManifestUsesPayload(t *testing.T) {
	cache := newMockCache()
	svc := New(fixedIdentities(), &mockMetadata{}, imageDerivatives(), cache,
		"https://iiif.example.org", "https://tiles.example.org", nil)

	props := map[string]any{
		"url":     "https://example.org/photo.jpg",
		"title":   "Supplied Title",
		"license": "CC-BY",
		"owner":   "Somebody",
	}
	m, err := svc.CreateManifest(context.Background(), props, false)
	if err != nil {
		t.Fatalf("CreateManifest: %v", err)
	}
	if got := m.Label.First("none"); got != "Supplied Title" {
		t.Errorf("label = %q", got)
	}
	if m.Rights != "http://creativecommons.org/licenses/by/4.0/" {
		t.Errorf("rights = %q", m.Rights)
	}
	if m.RequiredStatement == nil {
		t.Error("expected synthesized attribution")
	}
	if cache.puts != 1 {
		t.Errorf("puts = %d", cache.puts)
	}
}

func TestCreateManifestMissingURL(t *testing.T) {
	svc := New(fixedIdentities(), &mockMetadata{}, imageDerivatives(), newMockCache(),
		"https://iiif.example.org", "https://tiles.example.org", nil)

	_, err := svc.CreateManifest(context.Background(), map[string]any{"title": "x"}, false)
	if !errors.Is(err, domain.ErrUnsupportedIdentifier) {
		t.Fatalf("err = %v, want ErrUnsupportedIdentifier", err)
	}
}

func TestThumbnail(t *testing.T) {
	svc := New(fixedIdentities(),
		ghMetadata(domain.MetadataRecord{Label: "A Photo"}, nil),
		imageDerivatives(), newMockCache(),
		"https://iiif.example.org", "https://tiles.example.org", nil)

	url, err := svc.Thumbnail(context.Background(), "gh:acct/repo/photo.jpg", false)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if url != "https://tiles.example.org/iiif/3/fp1/full/400,/0/default.jpg" {
		t.Errorf("thumbnail = %q", url)
	}
}
