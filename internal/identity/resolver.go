// Package identity turns opaque resource identifiers into canonical
// source URLs and stable fingerprints. The fingerprint keys every
// cache and storage lookup downstream.
package identity

import (
	"context"
	"crypto/md5" //nolint:gosec // Commons URL layout requires md5 of the title, not a security use
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/mdpress/presto/internal/domain"
)

// Resolved is the output of identifier resolution.
type Resolved struct {
	Scheme      string
	URL         string
	Fingerprint string
}

// URLRule builds the canonical source URL for one scheme's path part.
// Rules for most schemes are pure; the wikidata rule consults an
// injected entity lookup.
type URLRule func(ctx context.Context, path string) (string, error)

// Resolver dispatches identifiers to per-scheme URL rules. Adding a
// source scheme means registering one more table entry.
type Resolver struct {
	rules map[string]URLRule
}

// NewResolver creates a resolver with the built-in gh and wc schemes
// registered.
func NewResolver() *Resolver {
	r := &Resolver{rules: make(map[string]URLRule)}
	r.Register("gh", githubRule)
	r.Register("wc", commonsRule)
	return r
}

// Register adds or replaces the rule for a scheme.
func (r *Resolver) Register(scheme string, rule URLRule) {
	r.rules[scheme] = rule
}

// Resolve parses an identifier into its scheme, canonical URL and
// fingerprint. Bare http(s) URLs pass through with scheme "url".
// Anything else without a registered scheme fails with
// ErrUnsupportedIdentifier.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (Resolved, error) {
	identifier = strings.TrimSpace(identifier)

	if scheme, path, ok := strings.Cut(identifier, ":"); ok {
		if rule, found := r.rules[scheme]; found {
			u, err := rule(ctx, path)
			if err != nil {
				return Resolved{}, fmt.Errorf("resolve %s identifier: %w", scheme, err)
			}
			return Resolved{Scheme: scheme, URL: u, Fingerprint: Fingerprint(u)}, nil
		}
	}

	if strings.HasPrefix(identifier, "http://") || strings.HasPrefix(identifier, "https://") {
		return Resolved{Scheme: "url", URL: identifier, Fingerprint: Fingerprint(identifier)}, nil
	}

	return Resolved{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedIdentifier, identifier)
}

// Fingerprint returns the lowercase hex sha256 digest of the canonical
// URL. Same URL, same fingerprint, always.
func Fingerprint(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

// githubRule maps "acct/repo/path..." to the raw content URL on the
// main branch. An "@ref" suffix on the repo selects another ref:
// "acct/repo@v2/images/x.jpg".
func githubRule(_ context.Context, path string) (string, error) {
	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("%w: gh identifier needs acct/repo/path", domain.ErrUnsupportedIdentifier)
	}
	acct, repo, filePath := parts[0], parts[1], parts[2]

	ref := "main"
	if name, r, ok := strings.Cut(repo, "@"); ok && r != "" {
		repo, ref = name, r
	}

	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", acct, repo, ref, filePath), nil
}

// commonsRule maps a Wikimedia Commons file title to its upload URL.
// Commons shards files by the md5 of the underscore-normalized title.
func commonsRule(_ context.Context, title string) (string, error) {
	title = strings.TrimPrefix(title, "File:")
	if title == "" {
		return "", fmt.Errorf("%w: empty wc title", domain.ErrUnsupportedIdentifier)
	}
	return CommonsUploadURL(title), nil
}

// commonsThumbWidth is the rendition width requested for titles that
// need the thumb endpoint.
const commonsThumbWidth = 1200

// CommonsUploadURL builds the upload.wikimedia.org URL for a Commons
// file title. Shared with the wikidata resolver, which derives titles
// from P18 statements. svg and tif originals go through the thumb
// endpoint as png/jpg renditions; the raster decoders downstream
// cannot read the original bytes for those formats.
func CommonsUploadURL(title string) string {
	if decoded, err := url.QueryUnescape(title); err == nil {
		title = decoded
	}
	title = strings.ReplaceAll(title, " ", "_")
	sum := md5.Sum([]byte(title)) //nolint:gosec // Commons URL layout, not cryptography
	digest := hex.EncodeToString(sum[:])
	shard := fmt.Sprintf("%s/%s/%s", digest[:1], digest[:2], url.PathEscape(title))

	ext := ""
	if i := strings.LastIndexByte(title, '.'); i >= 0 {
		ext = strings.ToLower(title[i+1:])
	}
	switch ext {
	case "svg":
		return fmt.Sprintf("https://upload.wikimedia.org/wikipedia/commons/thumb/%s/%dpx-%s.png",
			shard, commonsThumbWidth, url.PathEscape(title))
	case "tif", "tiff":
		return fmt.Sprintf("https://upload.wikimedia.org/wikipedia/commons/thumb/%s/%dpx-%s.jpg",
			shard, commonsThumbWidth, url.PathEscape(title))
	}
	return "https://upload.wikimedia.org/wikipedia/commons/" + shard
}
