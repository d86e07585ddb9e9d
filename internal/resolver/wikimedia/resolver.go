// Package wikimedia resolves metadata for wc: identifiers from the
// Wikimedia Commons imageinfo API.
package wikimedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mdpress/presto/internal/domain"
	"github.com/mdpress/presto/internal/resolver"
)

const defaultAPIBase = "https://commons.wikimedia.org/w/api.php"

// Resolver queries the Commons imageinfo endpoint.
type Resolver struct {
	client    *http.Client
	userAgent string
	apiBase   string
	logger    *zap.Logger
}

// New creates a Wikimedia Commons metadata resolver.
func New(client *http.Client, userAgent string, logger *zap.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, userAgent: userAgent, apiBase: defaultAPIBase, logger: logger}
}

// WithAPIBase overrides the API endpoint (tests).
func (r *Resolver) WithAPIBase(base string) *Resolver {
	r.apiBase = base
	return r
}

// extValue is one extmetadata field.
type extValue struct {
	Value string `json:"value"`
}

type imageInfo struct {
	ExtMetadata map[string]extValue `json:"extmetadata"`
}

type page struct {
	PageID    int         `json:"pageid"`
	Title     string      `json:"title"`
	ImageInfo []imageInfo `json:"imageinfo"`
}

type queryResponse struct {
	Query struct {
		Pages map[string]page `json:"pages"`
	} `json:"query"`
}

// FetchMetadata maps Commons extmetadata onto a MetadataRecord.
func (r *Resolver) FetchMetadata(ctx context.Context, ref resolver.Ref) (domain.MetadataRecord, error) {
	title := strings.TrimPrefix(ref.Path, "File:")

	ext, err := r.extMetadata(ctx, title)
	if err != nil {
		return domain.MetadataRecord{}, err
	}

	lang := "none"
	rec := domain.MetadataRecord{Language: lang}

	if v, ok := ext["ObjectName"]; ok {
		rec.Label = StripHTML(v.Value)
	}
	if rec.Label == "" {
		rec.Label = resolver.LabelFromURL(ref.URL)
	}
	if v, ok := ext["ImageDescription"]; ok {
		rec.Summary = StripHTML(v.Value)
	}

	author := ""
	for _, fld := range []string{"Attribution", "Artist"} {
		if v, ok := ext[fld]; ok && v.Value != "" {
			author = StripHTML(v.Value)
			break
		}
	}

	rec.Pairs = []domain.Pair{
		{Label: "title", Value: rec.Label},
		{Label: "source", Value: "https://commons.wikimedia.org/wiki/File:" + strings.ReplaceAll(title, " ", "_")},
	}
	if author != "" {
		rec.Pairs = append(rec.Pairs, domain.Pair{Label: "author", Value: author})
	}

	code, lic, ok := parseLicense(ext)
	if ok {
		rec.Rights = lic.URL
		if lic.URL != "" && !domain.IsPublicDomainCode(code) {
			rec.Attribution = resolver.AttributionStatement(rec.Label, author, code, lic)
		}
	}

	return rec, nil
}

func (r *Resolver) extMetadata(ctx context.Context, title string) (map[string]extValue, error) {
	u := fmt.Sprintf("%s?format=json&action=query&titles=File:%s&prop=imageinfo&iiprop=extmetadata|size|mime",
		r.apiBase, url.QueryEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: commons imageinfo: status %d", domain.ErrUpstreamFetch, resp.StatusCode)
	}

	var parsed queryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode imageinfo: %w", domain.ErrUpstreamFetch, err)
	}

	for _, p := range parsed.Query.Pages {
		if len(p.ImageInfo) > 0 {
			return p.ImageInfo[0].ExtMetadata, nil
		}
	}
	return nil, fmt.Errorf("%w: no imageinfo for %q", domain.ErrUpstreamFetch, title)
}

var licenseVersionRe = regexp.MustCompile(`-?(\d\.\d)\s*$`)

// parseLicense extracts a license code and resolves it through the
// static rights table, substituting the declared version into the
// rights URL ("CC BY-SA 3.0" keeps /3.0/ rather than the table's 4.0).
func parseLicense(ext map[string]extValue) (string, domain.License, bool) {
	var raw string
	for _, fld := range []string{"LicenseShortName", "License"} {
		if v, ok := ext[fld]; ok && v.Value != "" {
			raw = strings.ToUpper(v.Value)
			break
		}
	}
	if raw == "" {
		return "", domain.License{}, false
	}

	version := ""
	if m := licenseVersionRe.FindStringSubmatch(raw); m != nil {
		version = m[1]
	}
	code := strings.ReplaceAll(strings.TrimSpace(licenseVersionRe.ReplaceAllString(raw, "")), " ", "-")

	lic, ok := domain.LookupLicense(code)
	if !ok {
		return code, domain.License{}, false
	}
	if version != "" && lic.URL != "" {
		lic.URL = regexp.MustCompile(`/\d\.\d/`).ReplaceAllString(lic.URL, "/"+version+"/")
	}
	return code, lic, true
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML drops markup from extmetadata values, which Commons
// returns as HTML fragments.
func StripHTML(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}
