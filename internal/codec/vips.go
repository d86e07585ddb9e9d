package codec

import (
	"context"
	"fmt"
	"strconv"
)

// Vips encodes tiled pyramidal TIFFs with the vips CLI.
type Vips struct {
	bin string
	run runner
}

// NewVips creates a Vips encoder. Returns an error when the vips
// binary is not on PATH.
func NewVips() (*Vips, error) {
	if err := lookPath("vips"); err != nil {
		return nil, fmt.Errorf("vips not available: %w", err)
	}
	return &Vips{bin: "vips", run: execRunner}, nil
}

// Encode writes a JPEG-compressed pyramidal TIFF to dst.
func (v *Vips) Encode(ctx context.Context, src, dst string, quality, tileSize int) error {
	_, err := v.run(ctx, v.bin, "tiffsave", src, dst,
		"--tile",
		"--pyramid",
		"--compression", "jpeg",
		"--Q", strconv.Itoa(quality),
		"--tile-width", strconv.Itoa(tileSize),
		"--tile-height", strconv.Itoa(tileSize),
	)
	return err
}
