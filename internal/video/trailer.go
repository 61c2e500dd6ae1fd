package video

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// LoadTrailerFrames eagerly reads every frame of the trailer at path,
// rotates it a quarter turn clockwise and resizes it to the reference
// cover's dimensions, so per-frame workers can warp it directly. The
// caller owns the returned frames; release them with CloseFrames.
func LoadTrailerFrames(path string, coverWidth, coverHeight int) ([]gocv.Mat, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("load trailer: %w", err)
	}
	defer r.Close()

	raw := gocv.NewMat()
	defer raw.Close()

	var frames []gocv.Mat
	for r.ReadNext(&raw) {
		rotated := gocv.NewMat()
		gocv.Rotate(raw, &rotated, gocv.Rotate90Clockwise)

		sized := gocv.NewMat()
		gocv.Resize(rotated, &sized, image.Pt(coverWidth, coverHeight), 0, 0, gocv.InterpolationCubic)
		rotated.Close()

		frames = append(frames, sized)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("load trailer %s: no frames", path)
	}
	return frames, nil
}

func CloseFrames(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}
