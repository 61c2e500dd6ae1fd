package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

// FrameStream is a forward-only source of decoded frames.
type FrameStream interface {
	ReadNext(dst *gocv.Mat) bool
}

// KeyframeSelector emits the frames whose visual content changed enough
// since the last emitted frame to warrant re-evaluation. It samples every
// Stride-th frame, histograms it in hue/saturation space and compares
// against the last emitted frame's histogram by Bhattacharyya distance.
type KeyframeSelector struct {
	// Stride is the sampling interval in frames.
	Stride int
	// Threshold is the minimum Bhattacharyya distance for emission.
	Threshold float64
}

const (
	DefaultKeyframeStride    = 30
	DefaultKeyframeThreshold = 0.3
)

// Scan walks the stream and calls emit for every selected keyframe with the
// frame's index in the source. The first sampled frame is always emitted; a
// static video therefore emits exactly one frame. The frame passed to emit
// is only valid for the duration of the call; emit must clone it to keep
// it. A non-nil error from emit stops the scan.
func (s *KeyframeSelector) Scan(stream FrameStream, emit func(idx int, frame gocv.Mat) error) error {
	stride := s.Stride
	if stride <= 0 {
		stride = DefaultKeyframeStride
	}
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = DefaultKeyframeThreshold
	}

	frame := gocv.NewMat()
	defer frame.Close()

	lastHist := gocv.NewMat()
	defer lastHist.Close()

	for idx := 0; stream.ReadNext(&frame); idx++ {
		if idx%stride != 0 {
			continue
		}

		hist, err := hueSatHistogram(frame)
		if err != nil {
			return fmt.Errorf("keyframe scan at frame %d: %w", idx, err)
		}

		if !lastHist.Empty() {
			dist := gocv.CompareHist(lastHist, hist, gocv.HistCmpBhattacharya)
			if float64(dist) <= threshold {
				hist.Close()
				continue
			}
		}

		hist.CopyTo(&lastHist)
		hist.Close()

		if err := emit(idx, frame); err != nil {
			return err
		}
	}
	return nil
}

// hueSatHistogram computes a normalized 2D hue/saturation histogram with
// 50x60 bins. The caller owns the returned Mat.
func hueSatHistogram(frame gocv.Mat) (gocv.Mat, error) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()

	hist := gocv.NewMat()
	if err := gocv.CalcHist([]gocv.Mat{hsv}, []int{0, 1}, mask, &hist, []int{50, 60}, []float64{0, 180, 0, 256}, false); err != nil {
		hist.Close()
		return gocv.Mat{}, fmt.Errorf("histogram: %w", err)
	}
	gocv.Normalize(hist, &hist, 0, 1, gocv.NormMinMax)
	return hist, nil
}
