package domain

// MediaKind discriminates the derivative branch taken by the pipeline.
// Values match the IIIF body type vocabulary.
type MediaKind string

const (
	KindImage MediaKind = "Image"
	KindSound MediaKind = "Sound"
	KindVideo MediaKind = "Video"
)

// DerivativeRecord is the durable side-record produced by the
// derivative pipeline for one fingerprint. It is persisted at
// "<fingerprint>.json" so later calls can skip fetch and encode while
// still returning every field. Immutable once written unless a refresh
// is forced.
type DerivativeRecord struct {
	Kind   MediaKind `json:"type,omitempty"`
	Format string    `json:"format,omitempty"`
	Size   int64     `json:"size,omitempty"`

	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`

	// EXIF-derived fields, all best-effort.
	Orientation int       `json:"orientation,omitempty"`
	Camera      string    `json:"camera,omitempty"`
	Exposure    string    `json:"exposure,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Created     string    `json:"created,omitempty"`
	Location    *Location `json:"location,omitempty"`

	// SizeLabel is the human-readable "3000 x 2000 jpeg" string shown
	// in the manifest metadata list.
	SizeLabel string `json:"size_label,omitempty"`
	// AnnoID is a short digest of the source bytes, used as a stable
	// annotation identifier.
	AnnoID string `json:"id,omitempty"`

	// ObjectKey names the pyramidal tile object in the durable store
	// ("<fingerprint>.tif"). Empty when no derivative object exists,
	// in which case the manifest links the source bytes directly.
	ObjectKey string `json:"object_key,omitempty"`
	SourceURL string `json:"url,omitempty"`
}

// HasDimensions reports whether width and height are known.
func (d DerivativeRecord) HasDimensions() bool {
	return d.Width > 0 && d.Height > 0
}
