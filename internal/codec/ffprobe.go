package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mdpress/presto/internal/pipeline"
)

// FFProbe inspects audio and video files with the ffprobe CLI.
type FFProbe struct {
	bin string
	run runner
}

// NewFFProbe creates an FFProbe prober. Returns an error when the
// ffprobe binary is not on PATH.
func NewFFProbe() (*FFProbe, error) {
	if err := lookPath("ffprobe"); err != nil {
		return nil, fmt.Errorf("ffprobe not available: %w", err)
	}
	return &FFProbe{bin: "ffprobe", run: execRunner}, nil
}

// Probe returns the file's first stream.
func (f *FFProbe) Probe(ctx context.Context, path string) (pipeline.AVStream, error) {
	out, err := f.run(ctx, f.bin, "-v", "quiet", "-print_format", "json", "-show_streams", path)
	if err != nil {
		return pipeline.AVStream{}, err
	}

	var doc struct {
		Streams []struct {
			Duration           string            `json:"duration"`
			Width              int               `json:"width"`
			Height             int               `json:"height"`
			DisplayAspectRatio string            `json:"display_aspect_ratio"`
			Tags               map[string]string `json:"tags"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		return pipeline.AVStream{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(doc.Streams) == 0 {
		return pipeline.AVStream{}, fmt.Errorf("no streams in %s", path)
	}

	s := doc.Streams[0]
	return pipeline.AVStream{
		Duration:           s.Duration,
		Width:              s.Width,
		Height:             s.Height,
		DisplayAspectRatio: s.DisplayAspectRatio,
		Tags:               s.Tags,
	}, nil
}
