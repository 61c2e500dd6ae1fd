// Package identify picks the catalog entry a video is showing.
package identify

import (
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/bookreel/bookreel/internal/catalog"
	"github.com/bookreel/bookreel/internal/video"
)

// FrameSource provides random-access frame reads, typically a *video.Reader.
type FrameSource interface {
	Meta() video.Meta
	ReadAt(idx int, dst *gocv.Mat) error
}

// sampleWeights weight the three temporal samples at 25%, 50% and 75% of
// the video; the middle sample counts most because it is least likely to
// fall inside an intro or outro shot.
var sampleWeights = [3]float64{0.5, 1.0, 1.5}

// Identifier scores every catalog entry against a handful of temporal
// samples and selects the best match above a confidence threshold.
type Identifier struct {
	catalog  *catalog.Catalog
	comparer FrameComparer
	log      *logrus.Logger
}

func NewIdentifier(cat *catalog.Catalog, comparer FrameComparer, log *logrus.Logger) *Identifier {
	return &Identifier{catalog: cat, comparer: comparer, log: log}
}

// IdentifyInVideo samples frames at 25%, 50% and 75% of src and returns the
// cover with the highest weighted average confidence that clears minConfidence
// and yields a valid pose from the middle sample. ok is false when no entry
// qualifies; that is a defined outcome, not an error. Ties keep the first
// entry in catalog order.
func (id *Identifier) IdentifyInVideo(src FrameSource, minConfidence float64) (*BookIdentification, bool) {
	total := src.Meta().FrameCount
	positions := [3]int{total / 4, total / 2, total * 3 / 4}

	samples := make([]gocv.Mat, len(positions))
	valid := make([]bool, len(positions))
	for i, pos := range positions {
		samples[i] = gocv.NewMat()
		if err := src.ReadAt(pos, &samples[i]); err != nil {
			id.log.WithField("frame", pos).WithError(err).Warn("identification sample unreadable")
			continue
		}
		valid[i] = true
	}
	defer func() {
		for i := range samples {
			samples[i].Close()
		}
	}()

	anyValid := false
	for _, v := range valid {
		anyValid = anyValid || v
	}
	if !anyValid {
		id.log.Warn("no readable frames for identification")
		return nil, false
	}

	var best *BookIdentification
	bestScore := 0.0

	for _, cover := range id.catalog.Covers() {
		score := id.weightedScore(cover, samples, valid)
		id.log.WithFields(logrus.Fields{
			"cover": cover.Name,
			"score": score,
		}).Debug("identification candidate scored")

		if score < minConfidence || score <= bestScore {
			continue
		}

		// The middle sample anchors the base pose; a candidate that cannot
		// produce one is unusable no matter its score.
		if !valid[1] {
			continue
		}
		pose, ok := id.comparer.Pose(samples[1], cover)
		if !ok {
			id.log.WithField("cover", cover.Name).Debug("candidate rejected: no base pose")
			continue
		}

		if best != nil {
			best.Close()
		}
		best = &BookIdentification{
			Name:       cover.Name,
			ImagePath:  cover.Path,
			Image:      cover.Image.Clone(),
			Confidence: score,
			Base:       pose,
		}
		bestScore = score
	}

	if best == nil {
		id.log.WithField("min_confidence", minConfidence).Info("no cover matched above confidence threshold")
		return nil, false
	}

	id.log.WithFields(logrus.Fields{
		"cover":      best.Name,
		"confidence": best.Confidence,
	}).Info("cover identified")
	return best, true
}

// weightedScore combines per-sample confidences with the fixed weights.
// Unreadable samples and comparison errors contribute zero.
func (id *Identifier) weightedScore(cover *catalog.Cover, samples []gocv.Mat, valid []bool) float64 {
	var sum, totalWeight float64
	for i, w := range sampleWeights {
		totalWeight += w
		if !valid[i] {
			continue
		}
		count, err := id.comparer.Compare(samples[i], cover)
		if err != nil {
			id.log.WithField("cover", cover.Name).WithError(err).Debug("sample comparison failed")
			continue
		}
		sum += float64(count) * w
	}
	return sum / totalWeight
}

// MatchImage compares a single still image against the whole catalog and
// returns the entry with the highest confidence, or ok=false when nothing
// matched at all.
func (id *Identifier) MatchImage(img gocv.Mat, sourceName string) (MatchResult, bool) {
	var best MatchResult
	found := false

	for _, cover := range id.catalog.Covers() {
		count, err := id.comparer.Compare(img, cover)
		if err != nil {
			id.log.WithField("cover", cover.Name).WithError(err).Debug("image comparison failed")
			continue
		}
		if count > best.GoodMatches {
			best = MatchResult{
				SourceName:      sourceName,
				TargetName:      cover.Name,
				Confidence:      float64(count),
				GoodMatches:     count,
				TargetImagePath: cover.Path,
			}
			found = true
		}
	}
	return best, found
}
