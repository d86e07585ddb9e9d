package domain

import "errors"

var (
	// ErrUnsupportedIdentifier signals an identifier with an unknown scheme.
	ErrUnsupportedIdentifier = errors.New("unsupported identifier")
	// ErrNotFound signals a missing cached object.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamFetch signals a failed download or metadata lookup.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrCodec signals a probe, EXIF or tile-encode failure.
	ErrCodec = errors.New("codec failure")
	// ErrCacheBackend signals an unreachable durable store.
	ErrCacheBackend = errors.New("cache backend failure")
	// ErrAllResolversFailed signals that neither metadata nor media
	// could be produced for an identifier.
	ErrAllResolversFailed = errors.New("metadata and media lookups both failed")
)
