package wikimedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mdpress/presto/internal/resolver"
)

const imageinfoBody = `{
  "query": {
    "pages": {
      "12345": {
        "pageid": 12345,
        "title": "File:Sunflower.jpg",
        "imageinfo": [{
          "extmetadata": {
            "ObjectName": {"value": "Sunflower"},
            "ImageDescription": {"value": "<p>A <b>sunflower</b> at dusk</p>"},
            "LicenseShortName": {"value": "CC BY-SA 3.0"},
            "Artist": {"value": "<a href=\"https://example.org\">Jane Doe</a>"}
          }
        }]
      }
    }
  }
}`

func TestFetchMetadata_MapsExtmetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(imageinfoBody))
	}))
	defer srv.Close()

	r := New(srv.Client(), "presto test", nil).WithAPIBase(srv.URL)
	ref := resolver.Ref{
		Path: "Sunflower.jpg",
		URL:  "https://upload.wikimedia.org/wikipedia/commons/a/ab/Sunflower.jpg",
	}

	rec, err := r.FetchMetadata(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Label != "Sunflower" {
		t.Fatalf("got label %q", rec.Label)
	}
	if rec.Summary != "A sunflower at dusk" {
		t.Fatalf("got summary %q, want HTML stripped", rec.Summary)
	}
	if rec.Rights != "http://creativecommons.org/licenses/by-sa/3.0/" {
		t.Fatalf("got rights %q, want version-substituted CC BY-SA URL", rec.Rights)
	}
	if !strings.Contains(rec.Attribution, "Jane Doe") {
		t.Fatalf("attribution %q does not credit the artist", rec.Attribution)
	}

	var source string
	for _, p := range rec.Pairs {
		if p.Label == "source" {
			source = p.Value
		}
	}
	if source != "https://commons.wikimedia.org/wiki/File:Sunflower.jpg" {
		t.Fatalf("got source pair %q", source)
	}
}

func TestParseLicense(t *testing.T) {
	tests := []struct {
		name     string
		short    string
		wantURL  string
		wantCode string
	}{
		{"versioned by-sa", "CC BY-SA 3.0", "http://creativecommons.org/licenses/by-sa/3.0/", "CC-BY-SA"},
		{"plain cc0", "CC0", "http://creativecommons.org/publicdomain/zero/1.0/", "CC0"},
		{"public domain", "PUBLIC DOMAIN", "", "PUBLIC-DOMAIN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := map[string]extValue{"LicenseShortName": {Value: tt.short}}
			code, lic, ok := parseLicense(ext)
			if !ok {
				t.Fatalf("parseLicense(%q) not recognized", tt.short)
			}
			if code != tt.wantCode {
				t.Fatalf("got code %q, want %q", code, tt.wantCode)
			}
			if lic.URL != tt.wantURL {
				t.Fatalf("got URL %q, want %q", lic.URL, tt.wantURL)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	if got := StripHTML(`<big><a href="x">N. Body</a></big>`); got != "N. Body" {
		t.Fatalf("got %q", got)
	}
}
