package pipeline

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gopkg.in/yaml.v3"

	"github.com/mdpress/presto/internal/domain"
)

// rawMediaExtensions are the raw.githubusercontent.com extensions that
// name media directly. Anything else on that host is treated as a
// document whose YAML sidecar may point at the real image.
var rawMediaExtensions = map[string]struct{}{
	"gif": {}, "jpg": {}, "jpeg": {}, "mp3": {}, "mp4": {},
	"ogg": {}, "ogv": {}, "png": {}, "tif": {}, "tiff": {},
	"webm": {},
}

// probeImage fills the record from the downloaded image: content type,
// dimensions, byte size, short digest, and a best-effort EXIF subset.
func (p *Pipeline) probeImage(ctx context.Context, path string, rec *domain.DerivativeRecord) error {
	done := p.observe("probe")
	defer done()

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	rec.Kind = domain.KindImage
	rec.Format = sniffFormat(raw, rec.SourceURL)
	rec.Size = int64(len(raw))
	rec.AnnoID = shortDigest(raw)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("decode image config: %w", err)
	}
	rec.Width = cfg.Width
	rec.Height = cfg.Height
	rec.SizeLabel = sizeLabel(cfg.Width, cfg.Height, rec.Format)

	if p.exif != nil {
		data, err := p.exif.Extract(ctx, path)
		if err != nil {
			p.logger.Debug("exif extraction failed", zap.Error(err))
		} else {
			applyExif(data, rec)
		}
	}
	return nil
}

// probeAV fills the record from the first stream of an audio or video
// file.
func (p *Pipeline) probeAV(ctx context.Context, path string, rec *domain.DerivativeRecord) error {
	if p.prober == nil {
		return fmt.Errorf("no media prober configured")
	}
	done := p.observe("probe")
	defer done()

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mime := sniffFormat(raw, rec.SourceURL)
	rec.Format = mime
	rec.Size = int64(len(raw))
	rec.Kind = domain.KindSound
	if strings.HasPrefix(mime, "video/") {
		rec.Kind = domain.KindVideo
	}

	stream, err := p.prober.Probe(ctx, path)
	if err != nil {
		return err
	}
	rec.Width = stream.Width
	rec.Height = stream.Height
	if stream.DisplayAspectRatio != "" && stream.Height > 0 {
		if w, ok := aspectWidth(stream.DisplayAspectRatio, stream.Height); ok {
			rec.Width = w
		}
	}
	if stream.Duration != "" {
		if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
			rec.Duration = roundTenth(d)
		}
	}
	// Matroska containers report duration as an h:m:s tag instead of a
	// stream field.
	if hms, ok := stream.Tags["DURATION"]; ok {
		if secs, err := hmsToSeconds(hms); err == nil {
			rec.Duration = roundTenth(secs)
		}
	}
	// Audio and video report the byte count; only images get the
	// "W x H mime" form.
	rec.SizeLabel = strconv.FormatInt(rec.Size, 10)
	return nil
}

// applyExif copies the usable EXIF subset onto the record.
func applyExif(data ExifData, rec *domain.DerivativeRecord) {
	if data.Orientation > 0 {
		rec.Orientation = data.Orientation
	}
	if data.DateTimeOriginal != "" {
		if t, err := time.Parse("2006:01:02 15:04:05", data.DateTimeOriginal); err == nil {
			rec.Created = t.Format("2006-01-02T15:04:05Z")
		}
	}
	if len(data.GPSLatitude) == 3 && len(data.GPSLongitude) == 3 {
		lat := decimalDegrees(data.GPSLatitude, data.GPSLatitudeRef)
		lon := decimalDegrees(data.GPSLongitude, data.GPSLongitudeRef)
		rec.Location = &domain.Location{Coords: []float64{lat, lon}}
	}
	if data.Make != "" && data.Model != "" {
		rec.Camera = data.Make + " " + data.Model
	}
	if data.FocalLength > 0 && data.ExposureTime > 0 && data.FNumber > 0 && data.ISO > 0 {
		rec.Exposure = exposureString(data)
	}
	if data.ExposureMode != "" && data.ExposureProgram != "" {
		rec.Mode = data.ExposureMode + ", " + data.ExposureProgram
	}
}

// exposureString renders "<mm>mm 1/<t>s f/<f> ISO <iso>", preferring
// the 35mm-equivalent focal length when present.
func exposureString(data ExifData) string {
	focal := data.FocalLength
	if data.FocalLength35 > 0 {
		focal = data.FocalLength35
	}
	var shutter string
	if data.ExposureTime < 1 {
		shutter = fmt.Sprintf("1/%ds", int(math.Round(1/data.ExposureTime)))
	} else {
		shutter = fmt.Sprintf("%gs", data.ExposureTime)
	}
	return fmt.Sprintf("%gmm %s f/%g ISO %d", focal, shutter, data.FNumber, data.ISO)
}

// decimalDegrees converts degree/minute/second triples to signed
// decimal degrees, negated for the southern and western hemispheres.
func decimalDegrees(dms []float64, ref string) float64 {
	deg := dms[0] + dms[1]/60 + dms[2]/3600
	if ref == "S" || ref == "W" {
		deg = -deg
	}
	return math.Round(deg*1e6) / 1e6
}

// hmsToSeconds parses "h:mm:ss.frac" durations.
func hmsToSeconds(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed duration %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return float64(h*3600+m*60) + sec, nil
}

func aspectWidth(ratio string, height int) (int, bool) {
	w, h, ok := strings.Cut(ratio, ":")
	if !ok {
		return 0, false
	}
	wn, err := strconv.Atoi(w)
	if err != nil {
		return 0, false
	}
	hn, err := strconv.Atoi(h)
	if err != nil || hn == 0 {
		return 0, false
	}
	return int(math.Round(float64(height) * float64(wn) / float64(hn))), true
}

func roundTenth(f float64) float64 { return math.Round(f*10) / 10 }

// sniffFormat prefers content sniffing, falling back to the URL
// extension only when sniffing yields nothing specific.
func sniffFormat(raw []byte, sourceURL string) string {
	mime := http.DetectContentType(raw)
	if mime != "application/octet-stream" && mime != "text/plain; charset=utf-8" {
		return mime
	}
	switch extension(sourceURL) {
	case "tif", "tiff":
		return "image/tiff"
	case "mp3":
		return "audio/mpeg"
	case "oga", "ogg":
		return "audio/ogg"
	case "ogv":
		return "video/ogg"
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	}
	return mime
}

func sizeLabel(width, height int, mime string) string {
	sub := mime
	if _, after, ok := strings.Cut(mime, "/"); ok {
		sub = after
	}
	if i := strings.IndexByte(sub, ';'); i >= 0 {
		sub = sub[:i]
	}
	return fmt.Sprintf("%d x %d %s", width, height, sub)
}

func extension(sourceURL string) string {
	path := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Path != "" {
		path = u.Path
	}
	last := path[strings.LastIndexByte(path, '/')+1:]
	if i := strings.LastIndexByte(last, '.'); i >= 0 {
		return strings.ToLower(last[i+1:])
	}
	return ""
}

// indirectURL resolves the single level of indirection used by GitHub
// hosted documents: a non-media raw URL names a page whose YAML
// sidecar may carry an image_url field pointing at the real media.
func (p *Pipeline) indirectURL(ctx context.Context, sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host != "raw.githubusercontent.com" {
		return sourceURL, nil
	}
	if _, ok := rawMediaExtensions[extension(sourceURL)]; ok {
		return sourceURL, nil
	}

	sidecar := sourceURL
	if i := strings.LastIndexByte(sidecar, '.'); i > strings.LastIndexByte(sidecar, '/') {
		sidecar = sidecar[:i]
	}
	sidecar += ".yaml"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sidecar, nil)
	if err != nil {
		return sourceURL, nil
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %v: %w", sidecar, err, domain.ErrUpstreamFetch)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return sourceURL, nil
	}
	var meta struct {
		ImageURL string `yaml:"image_url"`
	}
	if err := yaml.NewDecoder(resp.Body).Decode(&meta); err != nil || meta.ImageURL == "" {
		return sourceURL, nil
	}
	return meta.ImageURL, nil
}
