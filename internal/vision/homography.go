package vision

import (
	"gocv.io/x/gocv"
)

const (
	// MinCorrespondences is the minimum number of matched point pairs a
	// homography fit requires.
	MinCorrespondences = 4

	// ransacReprojThreshold is the inlier distance tolerance in pixels.
	ransacReprojThreshold = 5.0
)

// EstimatePose fits a robust reference-to-frame homography from ratio-test
// survivors, where matches were produced by Match(frame, reference) so that
// Train indexes into ref and Query indexes into frame. ok is false when
// there are too few correspondences or the RANSAC fit is rejected; the
// returned Mat is only valid (and owned by the caller) when ok is true.
func EstimatePose(ref, frame *FeatureSet, matches []Correspondence) (gocv.Mat, bool) {
	if len(matches) < MinCorrespondences {
		return gocv.Mat{}, false
	}

	src := gocv.NewMatWithSize(len(matches), 1, gocv.MatTypeCV64FC2)
	defer src.Close()
	dst := gocv.NewMatWithSize(len(matches), 1, gocv.MatTypeCV64FC2)
	defer dst.Close()

	for i, m := range matches {
		rp := ref.Keypoints[m.Train]
		src.SetDoubleAt(i, 0, rp.X)
		src.SetDoubleAt(i, 1, rp.Y)

		fp := frame.Keypoints[m.Query]
		dst.SetDoubleAt(i, 0, fp.X)
		dst.SetDoubleAt(i, 1, fp.Y)
	}

	mask := gocv.NewMat()
	defer mask.Close()

	h := gocv.FindHomography(src, &dst, gocv.HomographyMethodRANSAC, ransacReprojThreshold, &mask, 2000, 0.995)
	if h.Empty() {
		h.Close()
		return gocv.Mat{}, false
	}
	return h, true
}
