package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mdpress/presto/internal/pipeline"
)

// exifTags selects the tags the pipeline uses. A trailing # requests
// the numeric form of a tag whose printable form is a description.
var exifTags = []string{
	"-Orientation#",
	"-DateTimeOriginal",
	"-GPSLatitude#",
	"-GPSLatitudeRef",
	"-GPSLongitude#",
	"-GPSLongitudeRef",
	"-Make",
	"-Model",
	"-FocalLength#",
	"-FocalLengthIn35mmFormat#",
	"-ExposureTime#",
	"-FNumber#",
	"-ISO#",
	"-ExposureMode",
	"-ExposureProgram",
}

// ExifTool reads EXIF tags with the exiftool CLI.
type ExifTool struct {
	bin string
	run runner
}

// NewExifTool creates an ExifTool extractor. Returns an error when the
// exiftool binary is not on PATH.
func NewExifTool() (*ExifTool, error) {
	if err := lookPath("exiftool"); err != nil {
		return nil, fmt.Errorf("exiftool not available: %w", err)
	}
	return &ExifTool{bin: "exiftool", run: execRunner}, nil
}

// Extract reads the tag subset from one image file.
func (e *ExifTool) Extract(ctx context.Context, path string) (pipeline.ExifData, error) {
	args := append(append([]string{"-json"}, exifTags...), path)
	out, err := e.run(ctx, e.bin, args...)
	if err != nil {
		return pipeline.ExifData{}, err
	}

	var docs []struct {
		Orientation      int     `json:"Orientation"`
		DateTimeOriginal string  `json:"DateTimeOriginal"`
		GPSLatitude      float64 `json:"GPSLatitude"`
		GPSLatitudeRef   string  `json:"GPSLatitudeRef"`
		GPSLongitude     float64 `json:"GPSLongitude"`
		GPSLongitudeRef  string  `json:"GPSLongitudeRef"`
		Make             string  `json:"Make"`
		Model            string  `json:"Model"`
		FocalLength      float64 `json:"FocalLength"`
		FocalLength35    float64 `json:"FocalLengthIn35mmFormat"`
		ExposureTime     float64 `json:"ExposureTime"`
		FNumber          float64 `json:"FNumber"`
		ISO              int     `json:"ISO"`
		ExposureMode     string  `json:"ExposureMode"`
		ExposureProgram  string  `json:"ExposureProgram"`
	}
	if err := json.Unmarshal(out, &docs); err != nil {
		return pipeline.ExifData{}, fmt.Errorf("decode exiftool output: %w", err)
	}
	if len(docs) == 0 {
		return pipeline.ExifData{}, fmt.Errorf("no exif output for %s", path)
	}

	d := docs[0]
	data := pipeline.ExifData{
		Orientation:      d.Orientation,
		DateTimeOriginal: d.DateTimeOriginal,
		GPSLatitudeRef:   d.GPSLatitudeRef,
		GPSLongitudeRef:  d.GPSLongitudeRef,
		Make:             d.Make,
		Model:            d.Model,
		FocalLength:      d.FocalLength,
		FocalLength35:    d.FocalLength35,
		ExposureTime:     d.ExposureTime,
		FNumber:          d.FNumber,
		ISO:              d.ISO,
		ExposureMode:     d.ExposureMode,
		ExposureProgram:  d.ExposureProgram,
	}
	// exiftool reports unsigned decimal degrees with a separate
	// hemisphere ref; fold them into the degree slot of a DMS triple.
	if d.GPSLatitude != 0 || d.GPSLongitude != 0 {
		data.GPSLatitude = []float64{d.GPSLatitude, 0, 0}
		data.GPSLongitude = []float64{d.GPSLongitude, 0, 0}
	}
	return data, nil
}
