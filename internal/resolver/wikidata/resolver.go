package wikidata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mdpress/presto/internal/domain"
	"github.com/mdpress/presto/internal/resolver"
)

// api is the consumer interface over Client (ISP, for tests).
type api interface {
	Entity(ctx context.Context, qid string) (Statements, error)
	Labels(ctx context.Context, qids []string, lang string) (map[string]string, error)
	Location(ctx context.Context, qid, lang string) (LocationData, error)
}

// Resolver maps Wikidata entity statements onto a MetadataRecord.
// Label, summary, rights, and attribution come from the Commons
// description page of the entity's image, the same path wc: records
// take; the entity statements layer photography and place details on
// top.
type Resolver struct {
	api     api
	commons resolver.Resolver
	logger  *zap.Logger
}

// New creates a Wikidata metadata resolver backed by a Client. The
// commons resolver supplies the image's descriptive metadata and may
// be nil, in which case only entity statements are mapped.
func New(client *Client, commons resolver.Resolver, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{api: client, commons: commons, logger: logger}
}

// FetchMetadata fetches the entity named by the wd: identifier and
// maps the properties the manifest cares about. Label lookups for
// linked entities (camera make, depicts) are best-effort: a failed
// lookup keeps the QID as the display value.
func (r *Resolver) FetchMetadata(ctx context.Context, ref resolver.Ref) (domain.MetadataRecord, error) {
	qid := strings.TrimSpace(ref.Path)
	if qid == "" {
		return domain.MetadataRecord{}, fmt.Errorf("%w: empty wd entity id", domain.ErrUnsupportedIdentifier)
	}

	stmts, err := r.api.Entity(ctx, qid)
	if err != nil {
		return domain.MetadataRecord{}, err
	}

	lang := "none"
	rec := r.baseRecord(ctx, ref)
	rec.Language = lang
	rec.Pairs = setPair(rec.Pairs, "source", "https://www.wikidata.org/entity/"+qid)

	// P571: inception.
	if v, ok := stmts.First("P571"); ok && v.Time != "" {
		rec.Created = strings.TrimPrefix(v.Time, "+")
	}

	// Coordinates: depicted place, then point of view, then the
	// location entity named by P1071 or P921.
	for _, prop := range []string{"P9149", "P1259"} {
		if v, ok := stmts.First(prop); ok && (v.Lat != 0 || v.Lon != 0) {
			rec.Location = &domain.Location{Coords: []float64{v.Lat, v.Lon}}
			break
		}
	}
	if rec.Location == nil {
		for _, prop := range []string{"P1071", "P921"} {
			v, ok := stmts.First(prop)
			if !ok || v.ID == "" {
				continue
			}
			loc, err := r.api.Location(ctx, v.ID, lang)
			if err != nil {
				r.logger.Warn("location entity lookup failed",
					zap.String("qid", v.ID), zap.Error(err))
				continue
			}
			if len(loc.Coords) == 0 {
				continue
			}
			rec.Location = &domain.Location{
				Coords:      loc.Coords,
				ID:          v.ID,
				Label:       loc.Label,
				Description: loc.Description,
			}
			break
		}
	}

	// P6243: the work the image is a digital representation of.
	if v, ok := stmts.First("P6243"); ok && v.ID != "" {
		label := r.labelsOrQIDs(ctx, []string{v.ID}, lang)[0]
		rec.Pairs = append(rec.Pairs, domain.Pair{
			Label: "digital representation of",
			Value: fmt.Sprintf(`<a href="https://www.wikidata.org/entity/%s">%s</a>`, v.ID, label),
		})
	}

	// P180: depicts.
	if depicted := stmts["P180"]; len(depicted) > 0 {
		qids := make([]string, 0, len(depicted))
		for _, v := range depicted {
			if v.ID != "" {
				qids = append(qids, v.ID)
			}
		}
		rec.Pairs = append(rec.Pairs, domain.Pair{
			Label: "depicts",
			Value: strings.Join(r.labelsOrQIDs(ctx, qids, lang), "; "),
		})
	}

	// P4082: camera make/model.
	if makes := stmts["P4082"]; len(makes) > 0 {
		qids := make([]string, 0, len(makes))
		for _, v := range makes {
			if v.ID != "" {
				qids = append(qids, v.ID)
			}
		}
		rec.Pairs = append(rec.Pairs, domain.Pair{
			Label: "camera",
			Value: strings.Join(r.labelsOrQIDs(ctx, qids, lang), "; "),
		})
	}

	if exposure := exposureString(stmts); exposure != "" {
		rec.Pairs = append(rec.Pairs, domain.Pair{Label: "exposure", Value: exposure})
	}

	return rec, nil
}

// baseRecord builds the descriptive part of the record from the Commons
// description page of the image the identifier resolved to. When no
// commons resolver is wired or the lookup fails, the record falls back
// to a label derived from the source URL.
func (r *Resolver) baseRecord(ctx context.Context, ref resolver.Ref) domain.MetadataRecord {
	title := commonsFileTitle(ref.URL)
	if r.commons != nil && title != "" {
		rec, err := r.commons.FetchMetadata(ctx, resolver.Ref{
			Identifier:  ref.Identifier,
			Path:        "File:" + title,
			URL:         ref.URL,
			Fingerprint: ref.Fingerprint,
		})
		if err == nil {
			return rec
		}
		r.logger.Warn("commons metadata lookup failed",
			zap.String("title", title), zap.Error(err))
	}

	rec := domain.MetadataRecord{Label: resolver.LabelFromURL(ref.URL)}
	rec.Pairs = []domain.Pair{{Label: "title", Value: rec.Label}}
	return rec
}

// commonsFileTitle extracts the file title from a Commons upload URL.
// Thumb renditions keep the original title one segment before the
// rendition name.
func commonsFileTitle(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segs {
		if seg == "thumb" && i+3 < len(segs) {
			return unescapeTitle(segs[i+3])
		}
	}
	if len(segs) == 0 || segs[len(segs)-1] == "" {
		return ""
	}
	return unescapeTitle(segs[len(segs)-1])
}

func unescapeTitle(seg string) string {
	if title, err := url.PathUnescape(seg); err == nil {
		return title
	}
	return seg
}

// setPair replaces the value of an existing pair, appending when the
// label is new.
func setPair(pairs []domain.Pair, label, value string) []domain.Pair {
	for i := range pairs {
		if pairs[i].Label == label {
			pairs[i].Value = value
			return pairs
		}
	}
	return append(pairs, domain.Pair{Label: label, Value: value})
}

// labelsOrQIDs resolves entity labels, keeping the QID when the lookup
// fails or lacks an entry.
func (r *Resolver) labelsOrQIDs(ctx context.Context, qids []string, lang string) []string {
	labels, err := r.api.Labels(ctx, qids, lang)
	if err != nil {
		r.logger.Warn("entity label lookup failed", zap.Error(err))
		labels = map[string]string{}
	}
	out := make([]string, len(qids))
	for i, qid := range qids {
		if label, ok := labels[qid]; ok {
			out[i] = label
		} else {
			out[i] = qid
		}
	}
	return out
}

// exposureString assembles "<mm>mm 1/<t>s f/<f> ISO <iso>" from the
// photography properties, skipping absent parts.
func exposureString(stmts Statements) string {
	var parts []string

	if v, ok := stmts.First("P2151"); ok { // focal length
		if f, err := strconv.ParseFloat(strings.TrimPrefix(v.Amount, "+"), 64); err == nil {
			parts = append(parts, fmt.Sprintf("%dmm", int(f)))
		}
	}
	if v, ok := stmts.First("P6757"); ok { // exposure time
		if t, err := strconv.ParseFloat(strings.TrimPrefix(v.Amount, "+"), 64); err == nil && t > 0 {
			if t < 1 {
				parts = append(parts, fmt.Sprintf("1/%ds", int(1/t+0.5)))
			} else {
				parts = append(parts, fmt.Sprintf("%gs", t))
			}
		}
	}
	if v, ok := stmts.First("P6790"); ok { // f-number
		if f, err := strconv.ParseFloat(strings.TrimPrefix(v.Amount, "+"), 64); err == nil {
			parts = append(parts, fmt.Sprintf("f/%g", f))
		}
	}
	if v, ok := stmts.First("P6789"); ok { // ISO speed
		if iso, err := strconv.ParseFloat(strings.TrimPrefix(v.Amount, "+"), 64); err == nil {
			parts = append(parts, fmt.Sprintf("ISO %d", int(iso)))
		}
	}

	return strings.Join(parts, " ")
}
