package domain

// IIIF Presentation 3 document structures. Only the subset this
// service emits is modeled; encoding/json sorts map keys, so a
// marshaled Manifest is byte-stable for identical inputs.

// LangMap is an IIIF language map: language tag to value list.
type LangMap map[string][]string

// NewLangMap wraps a single value under one language tag.
func NewLangMap(lang, value string) LangMap {
	return LangMap{lang: []string{value}}
}

// First returns the first value for lang, falling back to any tag.
func (m LangMap) First(lang string) string {
	if vals, ok := m[lang]; ok && len(vals) > 0 {
		return vals[0]
	}
	for _, vals := range m {
		if len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// LabeledValue is one entry of a manifest metadata list or a
// requiredStatement.
type LabeledValue struct {
	Label LangMap `json:"label"`
	Value LangMap `json:"value"`
}

// Service references an image service attached to an annotation body.
type Service struct {
	ID      string `json:"id"`
	Profile string `json:"profile"`
	Type    string `json:"type"`
}

// Body is the painted media resource of an annotation.
type Body struct {
	ID       string    `json:"id"`
	Type     MediaKind `json:"type"`
	Format   string    `json:"format,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Service  []Service `json:"service,omitempty"`
}

// Annotation paints a body onto a canvas.
type Annotation struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Motivation string `json:"motivation"`
	Target     string `json:"target"`
	Body       Body   `json:"body"`
}

// AnnotationPage groups annotations on a canvas.
type AnnotationPage struct {
	Type  string       `json:"type"`
	ID    string       `json:"id"`
	Items []Annotation `json:"items"`
}

// Canvas is the single presentation surface of a manifest.
type Canvas struct {
	Type     string           `json:"type"`
	ID       string           `json:"id"`
	Width    int              `json:"width,omitempty"`
	Height   int              `json:"height,omitempty"`
	Duration float64          `json:"duration,omitempty"`
	Format   string           `json:"format,omitempty"`
	Items    []AnnotationPage `json:"items"`
}

// Thumbnail references a reduced rendition of the resource.
type Thumbnail struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Geometry is a GeoJSON point.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// FeatureProperties carries optional labels for a navPlace feature.
type FeatureProperties struct {
	Label       LangMap `json:"label,omitempty"`
	Description LangMap `json:"description,omitempty"`
	ID          LangMap `json:"id,omitempty"`
}

// Feature is one navPlace feature.
type Feature struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Properties *FeatureProperties `json:"properties,omitempty"`
	Geometry   Geometry           `json:"geometry"`
}

// FeatureCollection is the navPlace extension block.
type FeatureCollection struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Manifest is the canonical merged document for one fingerprint.
// Assembled once per cache miss, persisted whole, never partially
// mutated; a forced refresh replaces the entire document.
type Manifest struct {
	Context           []string           `json:"@context"`
	ID                string             `json:"id"`
	Type              string             `json:"type"`
	Label             LangMap            `json:"label"`
	Summary           LangMap            `json:"summary,omitempty"`
	Rights            string             `json:"rights,omitempty"`
	RequiredStatement *LabeledValue      `json:"requiredStatement,omitempty"`
	NavDate           string             `json:"navDate,omitempty"`
	NavPlace          *FeatureCollection `json:"navPlace,omitempty"`
	Thumbnail         []Thumbnail        `json:"thumbnail,omitempty"`
	Items             []Canvas           `json:"items"`
	Metadata          []LabeledValue     `json:"metadata"`
}

// ManifestContexts lists the JSON-LD contexts of an emitted manifest,
// navplace first as the original service orders them.
var ManifestContexts = []string{
	"http://iiif.io/api/extension/navplace/context.json",
	"http://iiif.io/api/presentation/3/context.json",
}
