package manifest

import (
	"strconv"
	"strings"

	"github.com/mdpress/presto/internal/domain"
)

// deepZoomMinWidth is the source width above which the manifest points
// the viewer at the tiled image service instead of the source bytes.
const deepZoomMinWidth = 512

type assembleInput struct {
	BaseURL         string
	ImageServiceURL string
	ManifestID      string
	Fingerprint     string
	Meta            domain.MetadataRecord
	Deriv           domain.DerivativeRecord
}

// assemble deterministically merges a metadata record and a derivative
// record into a manifest. Pure: identical inputs yield an identical
// document, independent of which branch finished first.
func assemble(in assembleInput) *domain.Manifest {
	lang := in.Meta.Lang()

	label := in.Meta.Label
	if label == "" {
		label = "untitled"
	}

	kind := in.Deriv.Kind
	if kind == "" {
		kind = domain.KindImage
	}

	manifestID := in.ManifestID
	if manifestID == "" {
		manifestID = in.Fingerprint
	}

	canvasID := in.BaseURL + "/" + in.Fingerprint + "/canvas/p1"
	body := domain.Body{
		ID:     strings.ReplaceAll(in.Deriv.SourceURL, " ", "%20"),
		Type:   kind,
		Format: in.Deriv.Format,
	}
	canvas := domain.Canvas{
		Type:   "Canvas",
		ID:     canvasID,
		Format: in.Deriv.Format,
	}

	if kind == domain.KindSound || kind == domain.KindVideo {
		canvas.Duration = in.Deriv.Duration
		body.Duration = in.Deriv.Duration
	}
	if (kind == domain.KindImage || kind == domain.KindVideo) && in.Deriv.HasDimensions() {
		canvas.Width = in.Deriv.Width
		canvas.Height = in.Deriv.Height
		body.Width = in.Deriv.Width
		body.Height = in.Deriv.Height
	}

	m := &domain.Manifest{
		Context: domain.ManifestContexts,
		ID:      in.BaseURL + "/" + strings.ReplaceAll(manifestID, " ", "_") + "/manifest.json",
		Type:    "Manifest",
		Label:   domain.NewLangMap(lang, label),
		Metadata: make([]domain.LabeledValue, 0,
			len(in.Meta.Pairs)+8),
	}

	if kind == domain.KindImage {
		if in.Deriv.ObjectKey != "" && in.Deriv.Width > deepZoomMinWidth {
			serviceID := in.ImageServiceURL + "/iiif/3/" + in.Fingerprint
			body.Service = []domain.Service{{
				ID:      serviceID,
				Profile: "level2",
				Type:    "ImageService3",
			}}
			rotation := rotationFor(in.Deriv.Orientation)
			m.Thumbnail = []domain.Thumbnail{{
				ID:   serviceID + "/full/400,/" + strconv.Itoa(rotation) + "/default.jpg",
				Type: "Image",
			}}
		} else {
			m.Thumbnail = []domain.Thumbnail{{ID: body.ID, Type: "Image"}}
		}
	}

	canvas.Items = []domain.AnnotationPage{{
		Type: "AnnotationPage",
		ID:   in.BaseURL + "/" + in.Fingerprint + "/p1/1",
		Items: []domain.Annotation{{
			Type:       "Annotation",
			ID:         in.BaseURL + "/" + in.Fingerprint + "/annotation/p0001-image",
			Motivation: "painting",
			Target:     canvasID,
			Body:       body,
		}},
	}}
	m.Items = []domain.Canvas{canvas}

	if in.Meta.Summary != "" {
		m.Summary = domain.NewLangMap(lang, in.Meta.Summary)
	}
	m.Rights = in.Meta.Rights
	if in.Meta.Attribution != "" {
		m.RequiredStatement = &domain.LabeledValue{
			Label: domain.NewLangMap(lang, "attribution"),
			Value: domain.NewLangMap(lang, in.Meta.Attribution),
		}
	}

	for _, p := range in.Meta.Pairs {
		m.Metadata = append(m.Metadata, domain.LabeledValue{
			Label: domain.NewLangMap(lang, p.Label),
			Value: domain.NewLangMap(lang, p.Value),
		})
	}

	// Declared metadata wins over EXIF-derived values.
	if in.Meta.Created != "" {
		m.NavDate = in.Meta.Created
	} else if in.Deriv.Created != "" {
		m.NavDate = in.Deriv.Created
	}

	loc := in.Meta.Location
	if loc == nil {
		loc = in.Deriv.Location
	}
	if loc != nil && len(loc.Coords) == 2 {
		m.NavPlace = navPlace(in.BaseURL, in.Fingerprint, lang, loc)
	}

	appendTechnicalPairs(m, lang, in.Deriv)
	return m
}

// appendTechnicalPairs adds the derivative's technical facts to the
// metadata list. A key already declared by the metadata source is not
// overridden.
func appendTechnicalPairs(m *domain.Manifest, lang string, deriv domain.DerivativeRecord) {
	seen := make(map[string]struct{}, len(m.Metadata))
	for _, lv := range m.Metadata {
		seen[lv.Label.First(lang)] = struct{}{}
	}

	pairs := []domain.Pair{
		{Label: "camera", Value: deriv.Camera},
		{Label: "exposure", Value: deriv.Exposure},
		{Label: "mode", Value: deriv.Mode},
	}
	if deriv.Orientation > 0 {
		pairs = append(pairs, domain.Pair{Label: "orientation", Value: strconv.Itoa(deriv.Orientation)})
	}
	pairs = append(pairs,
		domain.Pair{Label: "size", Value: deriv.SizeLabel},
		domain.Pair{Label: "annoid", Value: deriv.AnnoID},
	)

	for _, p := range pairs {
		if p.Value == "" {
			continue
		}
		if _, ok := seen[p.Label]; ok {
			continue
		}
		m.Metadata = append(m.Metadata, domain.LabeledValue{
			Label: domain.NewLangMap("en", p.Label),
			Value: domain.NewLangMap("en", p.Value),
		})
	}
}

func navPlace(baseURL, fingerprint, lang string, loc *domain.Location) *domain.FeatureCollection {
	feature := domain.Feature{
		ID:   baseURL + "/" + fingerprint + "/iiif/feature/2",
		Type: "Feature",
		Geometry: domain.Geometry{
			Type:        "Point",
			Coordinates: loc.Coords,
		},
	}
	if loc.Label != "" {
		feature.Properties = &domain.FeatureProperties{
			Label:       domain.NewLangMap(lang, loc.Label),
			Description: domain.NewLangMap(lang, loc.Description),
			ID:          domain.NewLangMap(lang, loc.ID),
		}
	}
	return &domain.FeatureCollection{
		ID:       baseURL + "/" + fingerprint + "/iiif/feature-collection/2",
		Type:     "FeatureCollection",
		Features: []domain.Feature{feature},
	}
}

// rotationFor maps an EXIF orientation to the thumbnail rotation.
func rotationFor(orientation int) int {
	switch orientation {
	case 6:
		return 90
	case 3:
		return 180
	case 8:
		return 270
	default:
		return 0
	}
}
