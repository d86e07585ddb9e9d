package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mdpress/presto/internal/domain"
)

// Object resolves metadata from a caller-supplied property map, the
// path taken by POST /manifest bodies and by GitHub yaml sidecars.
type Object struct {
	Props map[string]any
}

// FetchMetadata converts the property map into a MetadataRecord.
func (o Object) FetchMetadata(_ context.Context, ref Ref) (domain.MetadataRecord, error) {
	return RecordFromObject(o.Props, ref.URL), nil
}

// RecordFromObject normalizes a loosely-typed property object into a
// MetadataRecord. Keys are matched case-insensitively; label falls
// back to title and then to the URL's last path segment; license codes
// go through the static rights table; an attribution statement is
// synthesized for non-public-domain licensed works when the object
// does not declare one.
func RecordFromObject(props map[string]any, sourceURL string) domain.MetadataRecord {
	get := func(keys ...string) string {
		for _, k := range keys {
			for pk, pv := range props {
				if strings.EqualFold(pk, k) {
					if s, ok := pv.(string); ok && s != "" {
						return s
					}
				}
			}
		}
		return ""
	}

	lang := get("language", "lang")
	if lang == "" {
		lang = "none"
	}

	label := get("label", "title")
	if label == "" {
		label = LabelFromURL(sourceURL)
	}

	owner := get("owner")
	if owner == "" {
		owner = "Unspecified"
	}

	rec := domain.MetadataRecord{
		Language: lang,
		Label:    label,
		Summary:  get("summary", "description"),
		Pairs: []domain.Pair{
			{Label: "title", Value: label},
			{Label: "source", Value: sourceURL},
		},
	}

	licenseCode := get("license")
	lic, known := domain.LookupLicense(licenseCode)
	if known && lic.URL != "" {
		rec.Rights = lic.URL
	}

	rec.Pairs = append(rec.Pairs, domain.Pair{Label: "author", Value: owner})

	if attribution := get("attribution"); attribution != "" {
		rec.Attribution = attribution
	} else if known && lic.URL != "" && !domain.IsPublicDomainCode(licenseCode) {
		rec.Attribution = AttributionStatement(label, owner, licenseCode, lic)
	}

	return rec
}

// LabelFromURL derives a display label from the last path segment of a
// URL: percent-decoded, extension stripped, underscores to spaces.
func LabelFromURL(sourceURL string) string {
	segment := sourceURL
	if idx := strings.LastIndex(segment, "/"); idx >= 0 {
		segment = segment[idx+1:]
	}
	if decoded, err := url.QueryUnescape(segment); err == nil {
		segment = decoded
	}
	if idx := strings.Index(segment, "."); idx > 0 {
		segment = segment[:idx]
	}
	segment = strings.ReplaceAll(segment, "_", " ")
	if segment == "" {
		return "untitled"
	}
	return segment
}

// AttributionStatement synthesizes the required statement for a
// licensed work.
func AttributionStatement(label, owner, code string, lic domain.License) string {
	display := strings.ReplaceAll(strings.ToUpper(code), "CC-", "CC ")
	return fmt.Sprintf(`Image <em>%s</em> provided by %s under a <a href="%s">%s (%s)</a> license`,
		label, owner, lic.URL, lic.Label, display)
}
