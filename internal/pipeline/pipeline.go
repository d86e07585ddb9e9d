package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mdpress/presto/internal/blob"
	"github.com/mdpress/presto/internal/domain"
)

// State names the terminal condition of one pipeline run.
type State string

const (
	// StateReused means an existing side-record answered the call.
	StateReused State = "reused"
	// StateFetched means the source was downloaded and probed but no
	// derivative object was produced (audio, video, or encode failure).
	StateFetched State = "fetched"
	// StateConverted means a pyramidal tile object was stored.
	StateConverted State = "converted"
	// StateFetchFailed means the source bytes could not be obtained.
	StateFetchFailed State = "fetch_failed"
	// StateProbeFailed means the downloaded bytes could not be decoded.
	StateProbeFailed State = "probe_failed"
	// StateEncodeFailed means tile encoding failed; the record is still
	// usable but carries no derivative object.
	StateEncodeFailed State = "encode_failed"
)

const defaultTileSize = 512

// avExtensions routes a source to the audio/video branch before any
// bytes are read. Content sniffing decides sound vs video afterwards.
var avExtensions = map[string]struct{}{
	"mp3": {}, "mp4": {}, "webm": {}, "oga": {}, "ogg": {}, "ogv": {},
}

// Pipeline downloads a source, probes it, optionally encodes a tiled
// pyramidal TIFF, and persists a side-record so the work is done at
// most once per fingerprint.
type Pipeline struct {
	store     Store
	client    *http.Client
	exif      ExifExtractor
	prober    MediaProber
	encoder   TileEncoder
	logger    *zap.Logger
	workspace string
	quality   int
	tileSize  int
	userAgent string
	stages    *prometheus.HistogramVec
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient replaces the download client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

// WithWorkspace sets the scratch directory for downloads.
func WithWorkspace(dir string) Option {
	return func(p *Pipeline) { p.workspace = dir }
}

// WithQuality sets the JPEG quality used when encoding tiles.
func WithQuality(q int) Option {
	return func(p *Pipeline) {
		if q > 0 {
			p.quality = q
		}
	}
}

// WithUserAgent sets the User-Agent header sent on downloads.
func WithUserAgent(ua string) Option {
	return func(p *Pipeline) { p.userAgent = ua }
}

// WithStageObserver records per-stage durations, labeled by stage.
func WithStageObserver(h *prometheus.HistogramVec) Option {
	return func(p *Pipeline) { p.stages = h }
}

// New creates a Pipeline. exif, prober, and encoder may be nil, in
// which case the corresponding enrichment is skipped.
func New(store Store, exif ExifExtractor, prober MediaProber, encoder TileEncoder, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		store:     store,
		client:    &http.Client{Timeout: 60 * time.Second},
		exif:      exif,
		prober:    prober,
		encoder:   encoder,
		logger:    logger,
		workspace: os.TempDir(),
		quality:   50,
		tileSize:  defaultTileSize,
		userAgent: "presto",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline for one source. A persisted side-record at
// "<fingerprint>.json" short-circuits everything unless refresh is
// set. Fetch failures are fatal; probe and encode failures degrade to
// a record with fewer fields. Workspace files never outlive the call.
func (p *Pipeline) Run(ctx context.Context, sourceURL, fingerprint string, refresh bool) (domain.DerivativeRecord, State, error) {
	sideKey := fingerprint + ".json"

	if !refresh {
		if rec, ok := p.reuse(ctx, sideKey); ok {
			return rec, StateReused, nil
		}
	}

	path, err := p.fetch(ctx, sourceURL, fingerprint)
	if err != nil {
		return domain.DerivativeRecord{}, StateFetchFailed, err
	}
	defer os.Remove(path)

	rec := domain.DerivativeRecord{SourceURL: sourceURL}
	state := StateFetched

	if isAV(sourceURL) {
		if err := p.probeAV(ctx, path, &rec); err != nil {
			p.logger.Warn("av probe failed", zap.String("url", sourceURL), zap.Error(err))
			return rec, StateProbeFailed, fmt.Errorf("probe %s: %w", sourceURL, domain.ErrCodec)
		}
	} else {
		if err := p.probeImage(ctx, path, &rec); err != nil {
			p.logger.Warn("image probe failed", zap.String("url", sourceURL), zap.Error(err))
			return rec, StateProbeFailed, fmt.Errorf("probe %s: %w", sourceURL, domain.ErrCodec)
		}
		switch err := p.produce(ctx, path, fingerprint, &rec); {
		case err == nil:
			state = StateConverted
		default:
			// A missing tile object only costs deep zoom. The manifest
			// falls back to linking the source bytes.
			p.logger.Warn("tile encode failed", zap.String("fingerprint", fingerprint), zap.Error(err))
			state = StateEncodeFailed
		}
	}

	if err := p.persist(ctx, sideKey, rec); err != nil {
		return rec, state, err
	}
	return rec, state, nil
}

// reuse loads a previously persisted side-record, if any. Store errors
// degrade to a miss so a flaky store cannot block generation.
func (p *Pipeline) reuse(ctx context.Context, sideKey string) (domain.DerivativeRecord, bool) {
	done := p.observe("reuse")
	defer done()

	ok, err := p.store.Exists(ctx, sideKey)
	if err != nil || !ok {
		return domain.DerivativeRecord{}, false
	}
	raw, err := p.store.Get(ctx, sideKey)
	if err != nil {
		p.logger.Warn("side-record read failed", zap.String("key", sideKey), zap.Error(err))
		return domain.DerivativeRecord{}, false
	}
	var rec domain.DerivativeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		p.logger.Warn("side-record decode failed", zap.String("key", sideKey), zap.Error(err))
		return domain.DerivativeRecord{}, false
	}
	return rec, true
}

// fetch downloads the source into a uniquely named workspace file and
// returns its path. Callers own removal.
func (p *Pipeline) fetch(ctx context.Context, sourceURL, fingerprint string) (string, error) {
	done := p.observe("fetch")
	defer done()

	target, err := p.indirectURL(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, domain.ErrUpstreamFetch)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %v: %w", target, err, domain.ErrUpstreamFetch)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d: %w", target, resp.StatusCode, domain.ErrUpstreamFetch)
	}

	path := filepath.Join(p.workspace, uuid.NewString())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create workspace file for %s: %w", fingerprint, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("fetch %s: %v: %w", target, err, domain.ErrUpstreamFetch)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// produce encodes the downloaded image into a tiled pyramidal TIFF and
// stores it at "<fingerprint>.tif".
func (p *Pipeline) produce(ctx context.Context, src, fingerprint string, rec *domain.DerivativeRecord) error {
	if p.encoder == nil {
		return fmt.Errorf("no tile encoder configured")
	}
	done := p.observe("encode")
	defer done()

	objectKey := fingerprint + ".tif"
	dst := filepath.Join(p.workspace, objectKey)
	defer os.Remove(dst)

	if err := p.encoder.Encode(ctx, src, dst, p.quality, p.tileSize); err != nil {
		return fmt.Errorf("encode tiles: %w", err)
	}
	tiles, err := os.ReadFile(dst)
	if err != nil {
		return fmt.Errorf("read encoded tiles: %w", err)
	}
	if err := p.store.Put(ctx, objectKey, tiles); err != nil {
		return fmt.Errorf("store tiles: %w", err)
	}
	rec.ObjectKey = objectKey
	return nil
}

// persist writes the side-record. Failure propagates so callers know
// the next call will redo the work.
func (p *Pipeline) persist(ctx context.Context, sideKey string, rec domain.DerivativeRecord) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode side-record: %w", err)
	}
	if err := p.store.Put(ctx, sideKey, raw); err != nil {
		return &blob.Error{Op: blob.OpPut, Err: err}
	}
	return nil
}

// observe returns a closure that records the stage's elapsed time.
func (p *Pipeline) observe(stage string) func() {
	if p.stages == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.stages.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func isAV(sourceURL string) bool {
	_, ok := avExtensions[extension(sourceURL)]
	return ok
}

// shortDigest derives the stable annotation identifier from content.
func shortDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:8]
}
