package main

import (
	"context"
	"net/http"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/mdpress/presto/internal/blob"
	blobredis "github.com/mdpress/presto/internal/blob/redis"
	blobs3 "github.com/mdpress/presto/internal/blob/s3"
	"github.com/mdpress/presto/internal/cache"
	"github.com/mdpress/presto/internal/codec"
	"github.com/mdpress/presto/internal/config"
	"github.com/mdpress/presto/internal/identity"
	"github.com/mdpress/presto/internal/metrics"
	"github.com/mdpress/presto/internal/pipeline"
	"github.com/mdpress/presto/internal/resolver"
	githubres "github.com/mdpress/presto/internal/resolver/github"
	wikidatares "github.com/mdpress/presto/internal/resolver/wikidata"
	wikimediares "github.com/mdpress/presto/internal/resolver/wikimedia"
	healthuc "github.com/mdpress/presto/internal/usecase/health"
	manifestuc "github.com/mdpress/presto/internal/usecase/manifest"
)

// newBlobStore creates the durable store based on the configured driver
// and waits for it to come up.
func newBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (blob.Store, error) {
	var store blob.Store
	var err error
	switch cfg.Store.Driver {
	case "s3":
		store, err = blobs3.NewStore(ctx, blobs3.Config{
			Bucket:   cfg.Store.S3.Bucket,
			Region:   cfg.Store.S3.Region,
			Endpoint: cfg.Store.S3.Endpoint,
			Prefix:   cfg.Store.S3.Prefix,
		})
	case "redis":
		store, err = blobredis.NewStore(blobredis.Config{
			Addrs:     cfg.Store.Redis.Addrs,
			Username:  cfg.Store.Redis.Username,
			Password:  cfg.Store.Redis.Password,
			DB:        cfg.Store.Redis.DB,
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
		})
	default:
		logger.Fatal("Unknown store driver", zap.String("driver", cfg.Store.Driver))
	}
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Store.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// newCodecs probes for the external media tools. A missing tool is a
// warning, not a startup failure: the pipeline degrades per media kind.
// Assign interfaces only on success; a typed nil pointer wrapped in an
// interface would not compare equal to nil inside the pipeline.
func newCodecs(logger *zap.Logger) (pipeline.ExifExtractor, pipeline.MediaProber, pipeline.TileEncoder) {
	var exif pipeline.ExifExtractor
	var prober pipeline.MediaProber
	var encoder pipeline.TileEncoder

	if e, err := codec.NewExifTool(); err != nil {
		logger.Warn("exiftool not available", zap.Error(err))
	} else {
		exif = e
	}
	if p, err := codec.NewFFProbe(); err != nil {
		logger.Warn("ffprobe not available", zap.Error(err))
	} else {
		prober = p
	}
	if v, err := codec.NewVips(); err != nil {
		logger.Warn("vips not available", zap.Error(err))
	} else {
		encoder = v
	}
	return exif, prober, encoder
}

// toolCheckers reports external tool availability for /healthz.
func toolCheckers() map[string]healthuc.ToolChecker {
	check := func(bin string) healthuc.ToolChecker {
		return func() error {
			_, err := exec.LookPath(bin)
			return err
		}
	}
	return map[string]healthuc.ToolChecker{
		"vips":     check("vips"),
		"ffprobe":  check("ffprobe"),
		"exiftool": check("exiftool"),
	}
}

// newManifestService assembles the identity resolver, metadata
// registry, derivative pipeline and manifest cache into one service.
func newManifestService(cfg config.Config, store blob.Store, logger *zap.Logger) *manifestuc.Service {
	httpClient := &http.Client{Timeout: time.Duration(cfg.Pipeline.FetchTimeoutSec) * time.Second}

	wd := wikidatares.NewClient(httpClient, cfg.Pipeline.UserAgent)

	ids := identity.NewResolver()
	ids.Register("wd", wd.URLRule())

	commons := wikimediares.New(httpClient, cfg.Pipeline.UserAgent, logger)

	registry := resolver.NewRegistry()
	registry.Register("gh", githubres.New(httpClient, cfg.Resolvers.GitHub.Token, cfg.Resolvers.GitHub.UserAgent, logger))
	registry.Register("wc", commons)
	registry.Register("wd", wikidatares.New(wd, commons, logger))

	exif, prober, encoder := newCodecs(logger)
	pipe := pipeline.New(store, exif, prober, encoder, logger,
		pipeline.WithHTTPClient(httpClient),
		pipeline.WithWorkspace(cfg.Pipeline.Workspace),
		pipeline.WithQuality(cfg.Pipeline.Quality),
		pipeline.WithUserAgent(cfg.Pipeline.UserAgent),
		pipeline.WithStageObserver(metrics.PipelineStageDuration),
	)

	manifestCache := cache.New(store, cfg.Cache.FastMaxEntries,
		time.Duration(cfg.Cache.FastTTLSec)*time.Second, metrics.CacheOpsTotal, logger)

	return manifestuc.New(ids, registry, pipe, manifestCache,
		cfg.Service.BaseURL, cfg.Service.ImageServiceURL, logger,
		manifestuc.WithBuildCounter(metrics.ManifestBuildsTotal))
}
