package pipeline

import "context"

// Store is the durable object store the pipeline reads side-records
// from and writes derivatives to.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// ExifData is the subset of EXIF tags used to enrich a derivative
// record. Zero values mean the tag was absent.
type ExifData struct {
	Orientation      int
	DateTimeOriginal string
	GPSLatitude      []float64
	GPSLatitudeRef   string
	GPSLongitude     []float64
	GPSLongitudeRef  string
	Make             string
	Model            string
	FocalLength      float64
	FocalLength35    float64
	ExposureTime     float64
	FNumber          float64
	ISO              int
	ExposureMode     string
	ExposureProgram  string
}

// ExifExtractor reads EXIF tags from an image file.
type ExifExtractor interface {
	Extract(ctx context.Context, path string) (ExifData, error)
}

// AVStream describes the first stream of an audio or video file.
// Numeric fields keep the probe tool's string representation.
type AVStream struct {
	Duration           string
	Width              int
	Height             int
	DisplayAspectRatio string
	Tags               map[string]string
}

// MediaProber inspects an audio or video file.
type MediaProber interface {
	Probe(ctx context.Context, path string) (AVStream, error)
}

// TileEncoder converts an image file into a tiled pyramidal TIFF.
type TileEncoder interface {
	Encode(ctx context.Context, src, dst string, quality, tileSize int) error
}
