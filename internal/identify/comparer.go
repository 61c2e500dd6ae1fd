package identify

import (
	"gocv.io/x/gocv"

	"github.com/bookreel/bookreel/internal/catalog"
	"github.com/bookreel/bookreel/internal/vision"
)

// FrameComparer scores a frame against a catalog cover and estimates the
// cover's pose in the frame. Implementations need not be safe for
// concurrent use.
type FrameComparer interface {
	// Compare returns the confidence score: the count of ratio-test
	// surviving correspondences between frame and cover.
	Compare(frame gocv.Mat, cover *catalog.Cover) (int, error)

	// Pose estimates the cover-to-frame homography; ok is false when no
	// valid pose exists. The caller owns the returned Mat when ok.
	Pose(frame gocv.Mat, cover *catalog.Cover) (gocv.Mat, bool)
}

// visionComparer implements FrameComparer with SIFT + brute-force ratio
// matching. Cover FeatureSets are cached per cover path since the same
// reference image is compared against many frames.
type visionComparer struct {
	extractor  *vision.Extractor
	matcher    *vision.Matcher
	coverFeats map[string]*vision.FeatureSet
}

func NewComparer() *visionComparer {
	return &visionComparer{
		extractor:  vision.NewExtractor(),
		matcher:    vision.NewMatcher(),
		coverFeats: make(map[string]*vision.FeatureSet),
	}
}

func (c *visionComparer) coverFeatures(cover *catalog.Cover) *vision.FeatureSet {
	if feats, ok := c.coverFeats[cover.Path]; ok {
		return feats
	}
	feats := c.extractor.Extract(cover.Image)
	c.coverFeats[cover.Path] = feats
	return feats
}

func (c *visionComparer) Compare(frame gocv.Mat, cover *catalog.Cover) (int, error) {
	frameFeats := c.extractor.Extract(frame)
	defer frameFeats.Close()

	return len(c.matcher.Match(frameFeats, c.coverFeatures(cover))), nil
}

func (c *visionComparer) Pose(frame gocv.Mat, cover *catalog.Cover) (gocv.Mat, bool) {
	frameFeats := c.extractor.Extract(frame)
	defer frameFeats.Close()

	ref := c.coverFeatures(cover)
	matches := c.matcher.Match(frameFeats, ref)
	return vision.EstimatePose(ref, frameFeats, matches)
}

func (c *visionComparer) Close() {
	for _, feats := range c.coverFeats {
		feats.Close()
	}
	c.matcher.Close()
	c.extractor.Close()
}
