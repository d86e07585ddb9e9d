// Package wikidata resolves metadata for wd: identifiers from Wikidata
// entity statements and the query service.
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mdpress/presto/internal/domain"
	"github.com/mdpress/presto/internal/identity"
)

const (
	defaultEntityBase = "https://www.wikidata.org/wiki/Special:EntityData"
	defaultSPARQLBase = "https://query.wikidata.org/sparql"
)

// Value is one statement value: exactly one of the fields is set
// depending on the property's datatype.
type Value struct {
	ID     string
	Time   string
	Amount string
	Lat    float64
	Lon    float64
}

// Statements maps property codes (P18, P571, ...) to their values.
type Statements map[string][]Value

// First returns the first value for a property.
func (s Statements) First(prop string) (Value, bool) {
	vals := s[prop]
	if len(vals) == 0 {
		return Value{}, false
	}
	return vals[0], true
}

// Client talks to the Wikidata entity and SPARQL endpoints.
type Client struct {
	http       *http.Client
	userAgent  string
	entityBase string
	sparqlBase string
}

// NewClient creates a Wikidata client.
func NewClient(client *http.Client, userAgent string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		http:       client,
		userAgent:  userAgent,
		entityBase: defaultEntityBase,
		sparqlBase: defaultSPARQLBase,
	}
}

// WithBases overrides the endpoints (tests).
func (c *Client) WithBases(entityBase, sparqlBase string) *Client {
	c.entityBase = strings.TrimSuffix(entityBase, "/")
	c.sparqlBase = sparqlBase
	return c
}

// URLRule returns an identity.URLRule resolving wd:Qxxx identifiers to
// the Commons upload URL of the entity's P18 image.
func (c *Client) URLRule() identity.URLRule {
	return func(ctx context.Context, qid string) (string, error) {
		title, err := c.ImageTitle(ctx, qid)
		if err != nil {
			return "", err
		}
		return identity.CommonsUploadURL(title), nil
	}
}

// ImageTitle returns the Commons file title of the entity's P18 image.
func (c *Client) ImageTitle(ctx context.Context, qid string) (string, error) {
	query := fmt.Sprintf("SELECT ?image WHERE { wd:%s wdt:P18 ?image . }", qid)
	rows, err := c.sparql(ctx, query)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: entity %s has no image", domain.ErrUpstreamFetch, qid)
	}
	imageURL := rows[0]["image"]
	title := imageURL[strings.LastIndex(imageURL, "/")+1:]
	title = strings.TrimPrefix(title, "File:")
	if decoded, err := url.QueryUnescape(title); err == nil {
		title = decoded
	}
	return title, nil
}

// Entity fetches an entity's statements.
func (c *Client) Entity(ctx context.Context, qid string) (Statements, error) {
	u := fmt.Sprintf("%s/%s.json", c.entityBase, qid)

	body, err := c.get(ctx, u, "application/json")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Entities map[string]struct {
			Claims     map[string][]rawStatement `json:"claims"`
			Statements map[string][]rawStatement `json:"statements"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode entity %s: %w", domain.ErrUpstreamFetch, qid, err)
	}

	ent, ok := parsed.Entities[qid]
	if !ok {
		return nil, fmt.Errorf("%w: entity %s not found", domain.ErrUpstreamFetch, qid)
	}

	claims := ent.Claims
	if len(claims) == 0 {
		claims = ent.Statements
	}

	out := make(Statements, len(claims))
	for prop, raws := range claims {
		for _, r := range raws {
			if v, ok := r.value(); ok {
				out[prop] = append(out[prop], v)
			}
		}
	}
	return out, nil
}

// Labels resolves entity IDs to display labels in lang, falling back
// to English.
func (c *Client) Labels(ctx context.Context, qids []string, lang string) (map[string]string, error) {
	if len(qids) == 0 {
		return map[string]string{}, nil
	}
	values := make([]string, len(qids))
	for i, qid := range qids {
		values[i] = fmt.Sprintf("(<http://www.wikidata.org/entity/%s>)", qid)
	}
	query := fmt.Sprintf(
		`SELECT ?item ?label WHERE { VALUES (?item) { %s } ?item rdfs:label ?label . FILTER (LANG(?label) = %q || LANG(?label) = "en") .}`,
		strings.Join(values, " "), lang)

	rows, err := c.sparql(ctx, query)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(rows))
	for _, row := range rows {
		item := row["item"]
		qid := item[strings.LastIndex(item, "/")+1:]
		if _, seen := labels[qid]; !seen {
			labels[qid] = row["label"]
		}
	}
	return labels, nil
}

// LocationData is the labelled position of a location entity.
type LocationData struct {
	Label       string
	Description string
	Coords      []float64
}

// Location fetches a location entity's label, description, and P625
// coordinates in one query, falling back to English text.
func (c *Client) Location(ctx context.Context, qid, lang string) (LocationData, error) {
	query := fmt.Sprintf(
		`SELECT ?item ?label ?description ?coords WHERE { VALUES (?item) { (wd:%s) } ?item rdfs:label ?label; schema:description ?description . FILTER ((LANG(?label) = %q || LANG(?label) = "en") && (LANG(?description) = %q || LANG(?description) = "en")) . OPTIONAL { ?item wdt:P625 ?coords . } }`,
		qid, lang, lang)

	rows, err := c.sparql(ctx, query)
	if err != nil {
		return LocationData{}, err
	}
	if len(rows) == 0 {
		return LocationData{}, fmt.Errorf("%w: no location data for %s", domain.ErrUpstreamFetch, qid)
	}

	row := rows[0]
	return LocationData{
		Label:       row["label"],
		Description: row["description"],
		Coords:      parsePoint(row["coords"]),
	}, nil
}

// parsePoint converts a WKT "Point(lon lat)" literal into [lat, lon].
func parsePoint(wkt string) []float64 {
	inner := strings.TrimSuffix(strings.TrimPrefix(wkt, "Point("), ")")
	fields := strings.Fields(inner)
	if len(fields) != 2 {
		return nil
	}
	lon, lonErr := strconv.ParseFloat(fields[0], 64)
	lat, latErr := strconv.ParseFloat(fields[1], 64)
	if lonErr != nil || latErr != nil {
		return nil
	}
	return []float64{lat, lon}
}

// sparql runs a query and flattens bindings to string maps.
func (c *Client) sparql(ctx context.Context, query string) ([]map[string]string, error) {
	u := c.sparqlBase + "?query=" + url.QueryEscape(query)

	body, err := c.get(ctx, u, "application/sparql-results+json")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results struct {
			Bindings []map[string]struct {
				Value string `json:"value"`
			} `json:"bindings"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode sparql results: %w", domain.ErrUpstreamFetch, err)
	}

	rows := make([]map[string]string, len(parsed.Results.Bindings))
	for i, b := range parsed.Results.Bindings {
		row := make(map[string]string, len(b))
		for k, v := range b {
			row[k] = v.Value
		}
		rows[i] = row
	}
	return rows, nil
}

func (c *Client) get(ctx context.Context, u, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", domain.ErrUpstreamFetch, u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// rawStatement is the wire shape of one statement.
type rawStatement struct {
	Mainsnak struct {
		Datavalue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

// value decodes the polymorphic datavalue into a Value.
func (r rawStatement) value() (Value, bool) {
	raw := r.Mainsnak.Datavalue.Value
	if len(raw) == 0 {
		return Value{}, false
	}

	var obj struct {
		ID        string  `json:"id"`
		Time      string  `json:"time"`
		Amount    string  `json:"amount"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil &&
		(obj.ID != "" || obj.Time != "" || obj.Amount != "" || obj.Latitude != 0 || obj.Longitude != 0) {
		return Value{
			ID:     obj.ID,
			Time:   obj.Time,
			Amount: obj.Amount,
			Lat:    obj.Latitude,
			Lon:    obj.Longitude,
		}, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Value{ID: s}, true
	}
	return Value{}, false
}
