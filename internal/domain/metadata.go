package domain

// Pair is one label/value metadata entry in source order.
type Pair struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Location is a geolocation attached to a resource, either declared by
// a metadata source or extracted from EXIF GPS tags.
type Location struct {
	// Coords is [latitude, longitude] in decimal degrees.
	Coords      []float64 `json:"coords"`
	ID          string    `json:"id,omitempty"`
	Label       string    `json:"label,omitempty"`
	Description string    `json:"description,omitempty"`
}

// MetadataRecord is the normalized output of a metadata resolver.
// It carries descriptive properties only; pixel dimensions and other
// technical fields belong to DerivativeRecord.
type MetadataRecord struct {
	Language    string    `json:"language,omitempty"`
	Label       string    `json:"label,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Rights      string    `json:"rights,omitempty"`
	Attribution string    `json:"attribution,omitempty"`
	Pairs       []Pair    `json:"metadata,omitempty"`
	Created     string    `json:"created,omitempty"`
	Location    *Location `json:"location,omitempty"`
}

// Lang returns the record's language tag, defaulting to "none" as the
// IIIF language map requires a key even for untagged values.
func (m MetadataRecord) Lang() string {
	if m.Language == "" {
		return "none"
	}
	return m.Language
}
