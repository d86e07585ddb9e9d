package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mdpress/presto/internal/domain"
)

func TestResolve_GitHub(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name       string
		identifier string
		wantURL    string
	}{
		{
			name:       "default branch",
			identifier: "gh:acct/repo/img.jpg",
			wantURL:    "https://raw.githubusercontent.com/acct/repo/main/img.jpg",
		},
		{
			name:       "nested path",
			identifier: "gh:acct/repo/images/2020/img.jpg",
			wantURL:    "https://raw.githubusercontent.com/acct/repo/main/images/2020/img.jpg",
		},
		{
			name:       "explicit ref",
			identifier: "gh:acct/repo@v2/img.jpg",
			wantURL:    "https://raw.githubusercontent.com/acct/repo/v2/img.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.identifier)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.URL != tt.wantURL {
				t.Fatalf("got URL %q, want %q", got.URL, tt.wantURL)
			}
			if got.Scheme != "gh" {
				t.Fatalf("got scheme %q, want gh", got.Scheme)
			}
			if len(got.Fingerprint) != 64 || got.Fingerprint != strings.ToLower(got.Fingerprint) {
				t.Fatalf("fingerprint %q is not lowercase hex sha256", got.Fingerprint)
			}
		})
	}
}

func TestResolve_Commons(t *testing.T) {
	r := NewResolver()

	got, err := r.Resolve(context.Background(), "wc:Sunflower sky backdrop.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got.URL, "https://upload.wikimedia.org/wikipedia/commons/") {
		t.Fatalf("got URL %q, want commons upload URL", got.URL)
	}
	if !strings.HasSuffix(got.URL, "Sunflower_sky_backdrop.jpg") {
		t.Fatalf("got URL %q, want underscore-normalized title suffix", got.URL)
	}
}

func TestCommonsUploadURL_ThumbVariants(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		wantThumb  bool
		wantSuffix string
	}{
		{
			name:       "jpg stays full size",
			title:      "Old mill.jpg",
			wantThumb:  false,
			wantSuffix: "Old_mill.jpg",
		},
		{
			name:       "svg becomes png rendition",
			title:      "Flag of Spain.svg",
			wantThumb:  true,
			wantSuffix: "/1200px-Flag_of_Spain.svg.png",
		},
		{
			name:       "tif becomes jpg rendition",
			title:      "Archive scan.tif",
			wantThumb:  true,
			wantSuffix: "/1200px-Archive_scan.tif.jpg",
		},
		{
			name:       "tiff becomes jpg rendition",
			title:      "Archive scan.tiff",
			wantThumb:  true,
			wantSuffix: "/1200px-Archive_scan.tiff.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CommonsUploadURL(tt.title)
			if hasThumb := strings.Contains(got, "/commons/thumb/"); hasThumb != tt.wantThumb {
				t.Fatalf("got %q, want thumb=%v", got, tt.wantThumb)
			}
			if !strings.HasSuffix(got, tt.wantSuffix) {
				t.Fatalf("got %q, want suffix %q", got, tt.wantSuffix)
			}
		})
	}
}

func TestResolve_HTTPPassthrough(t *testing.T) {
	r := NewResolver()

	got, err := r.Resolve(context.Background(), "https://example.org/media/img.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Scheme != "url" || got.URL != "https://example.org/media/img.jpg" {
		t.Fatalf("got %+v, want passthrough", got)
	}
}

func TestResolve_UnsupportedScheme(t *testing.T) {
	r := NewResolver()

	for _, id := range []string{"ftp://example.org/x", "xx:whatever", "plainstring", "gh:acct"} {
		if _, err := r.Resolve(context.Background(), id); !errors.Is(err, domain.ErrUnsupportedIdentifier) {
			t.Fatalf("Resolve(%q): got %v, want ErrUnsupportedIdentifier", id, err)
		}
	}
}

func TestResolve_RegisteredRule(t *testing.T) {
	r := NewResolver()
	r.Register("wd", func(_ context.Context, path string) (string, error) {
		return "https://upload.wikimedia.org/wikipedia/commons/a/ab/" + path + ".jpg", nil
	})

	got, err := r.Resolve(context.Background(), "wd:Q12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Scheme != "wd" {
		t.Fatalf("got scheme %q, want wd", got.Scheme)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	r := NewResolver()
	ctx := context.Background()

	// Distinct identifiers resolving to the same canonical URL share a
	// fingerprint.
	a, err := r.Resolve(ctx, "gh:acct/repo/img.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := r.Resolve(ctx, "https://raw.githubusercontent.com/acct/repo/main/img.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Fingerprint != b.Fingerprint {
		t.Fatalf("fingerprints differ: %q vs %q", a.Fingerprint, b.Fingerprint)
	}

	if Fingerprint("https://a.example") == Fingerprint("https://b.example") {
		t.Fatal("distinct URLs must not collide")
	}
}
