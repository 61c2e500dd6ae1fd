// Package track estimates the per-frame pose of a planar reference image.
package track

import (
	"gocv.io/x/gocv"

	"github.com/bookreel/bookreel/internal/vision"
)

// Tracker re-estimates the homography mapping a reference image into each
// frame. Per-frame failures are expected (motion blur, occlusion) and are
// reported as ok=false so the caller can fall back to the run's base pose.
//
// A Tracker owns its extractor and matcher and must not be shared between
// goroutines; the reference FeatureSet is read-only and may be shared.
type Tracker struct {
	extractor *vision.Extractor
	matcher   *vision.Matcher
	ref       *vision.FeatureSet
}

func New(ref *vision.FeatureSet) *Tracker {
	return &Tracker{
		extractor: vision.NewExtractor(),
		matcher:   vision.NewMatcher(),
		ref:       ref,
	}
}

// Pose estimates the reference-to-frame homography. The returned Mat is
// owned by the caller and only valid when ok is true. Any stage failing
// (no descriptors, too few correspondences, rejected fit) yields ok=false.
func (t *Tracker) Pose(frame gocv.Mat) (gocv.Mat, bool) {
	feats := t.extractor.Extract(frame)
	defer feats.Close()

	matches := t.matcher.Match(feats, t.ref)
	return vision.EstimatePose(t.ref, feats, matches)
}

func (t *Tracker) Close() {
	t.matcher.Close()
	t.extractor.Close()
}
