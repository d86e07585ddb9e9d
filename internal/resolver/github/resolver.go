// Package github resolves metadata for gh: identifiers from a
// companion yaml file next to the media file in the repository,
// fetched through the GitHub contents API.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mdpress/presto/internal/domain"
	"github.com/mdpress/presto/internal/resolver"
)

const defaultAPIBase = "https://api.github.com"

// Resolver fetches gh: metadata sidecars.
type Resolver struct {
	client    *http.Client
	token     string
	userAgent string
	apiBase   string
	logger    *zap.Logger
}

// New creates a GitHub metadata resolver. token may be empty for
// public repositories.
func New(client *http.Client, token, userAgent string, logger *zap.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client:    client,
		token:     token,
		userAgent: userAgent,
		apiBase:   defaultAPIBase,
		logger:    logger,
	}
}

// WithAPIBase overrides the API base URL (tests, GitHub Enterprise).
func (r *Resolver) WithAPIBase(base string) *Resolver {
	r.apiBase = strings.TrimSuffix(base, "/")
	return r
}

// FetchMetadata reads the "<name>.yaml" sidecar next to the media file
// and normalizes its properties. A missing or unreadable sidecar is an
// upstream failure; the orchestrator falls back to defaults.
func (r *Resolver) FetchMetadata(ctx context.Context, ref resolver.Ref) (domain.MetadataRecord, error) {
	acct, repo, gitRef, filePath, err := splitPath(ref.Path)
	if err != nil {
		return domain.MetadataRecord{}, err
	}

	raw, err := r.FileContents(ctx, acct, repo, gitRef, SidecarPath(filePath))
	if err != nil {
		return domain.MetadataRecord{}, err
	}

	var props map[string]any
	if err := yaml.Unmarshal(raw, &props); err != nil {
		return domain.MetadataRecord{}, fmt.Errorf("%w: parse sidecar: %w", domain.ErrUpstreamFetch, err)
	}

	return resolver.RecordFromObject(props, ref.URL), nil
}

// FileContents fetches one file through the contents API and decodes
// its base64 payload.
func (r *Resolver) FileContents(ctx context.Context, acct, repo, gitRef, filePath string) ([]byte, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		r.apiBase, acct, repo, filePath, url.QueryEscape(gitRef))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Token "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: contents %s/%s/%s: status %d",
			domain.ErrUpstreamFetch, acct, repo, filePath, resp.StatusCode)
	}

	var payload struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode contents response: %w", domain.ErrUpstreamFetch, err)
	}

	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: decode file content: %w", domain.ErrUpstreamFetch, err)
	}
	return data, nil
}

// SidecarPath replaces the media file's extension with .yaml.
func SidecarPath(filePath string) string {
	if idx := strings.LastIndex(filePath, "."); idx > strings.LastIndex(filePath, "/") {
		return filePath[:idx] + ".yaml"
	}
	return filePath + ".yaml"
}

// splitPath parses "acct/repo[@ref]/path..." from a gh identifier.
func splitPath(path string) (acct, repo, gitRef, filePath string, err error) {
	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", "", fmt.Errorf("%w: gh identifier needs acct/repo/path", domain.ErrUnsupportedIdentifier)
	}
	acct, repo, filePath = parts[0], parts[1], parts[2]
	gitRef = "main"
	if name, r, ok := strings.Cut(repo, "@"); ok && r != "" {
		repo, gitRef = name, r
	}
	return acct, repo, gitRef, filePath, nil
}
