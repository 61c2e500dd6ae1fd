package vision

import (
	"gocv.io/x/gocv"
)

// FeatureSet holds the keypoints and descriptors extracted from one image.
// It is immutable after creation; Close releases the descriptor matrix.
type FeatureSet struct {
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat
}

// Empty reports whether extraction found no usable descriptors.
func (f *FeatureSet) Empty() bool {
	return f == nil || len(f.Keypoints) == 0 || f.Descriptors.Empty()
}

func (f *FeatureSet) Close() {
	if f != nil {
		f.Descriptors.Close()
	}
}

// Extractor computes SIFT features from BGR images.
//
// Not safe for concurrent use: DetectAndCompute mutates internal OpenCV
// state. Give each worker goroutine its own Extractor.
type Extractor struct {
	sift gocv.SIFT
}

func NewExtractor() *Extractor {
	return &Extractor{sift: gocv.NewSIFT()}
}

// Extract computes the FeatureSet of img. A featureless image yields an
// empty FeatureSet, never an error. The caller owns the returned set.
func (e *Extractor) Extract(img gocv.Mat) *FeatureSet {
	if img.Empty() {
		return &FeatureSet{Descriptors: gocv.NewMat()}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	mask := gocv.NewMat()
	defer mask.Close()

	keypoints, descriptors := e.sift.DetectAndCompute(gray, mask)
	return &FeatureSet{Keypoints: keypoints, Descriptors: descriptors}
}

func (e *Extractor) Close() {
	e.sift.Close()
}
