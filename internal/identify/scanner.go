package identify

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/bookreel/bookreel/internal/cache"
	"github.com/bookreel/bookreel/internal/catalog"
	"github.com/bookreel/bookreel/internal/compose"
	"github.com/bookreel/bookreel/internal/video"
	"github.com/bookreel/bookreel/internal/vision"
)

// DefaultSignatureDistance is the maximum Hamming distance a cover's
// perceptual signature may have from a keyframe's to stay a candidate.
const DefaultSignatureDistance = 10

type ScannerOptions struct {
	// Stride and HistThreshold configure keyframe selection.
	Stride        int
	HistThreshold float64
	// SignatureDistance bounds the candidate filter; zero means
	// DefaultSignatureDistance.
	SignatureDistance int
	// Alpha is the blend factor for cached overlay images.
	Alpha float64
}

// Scanner walks a video's keyframes, prunes the catalog with perceptual
// signatures, matches the survivors and records each keyframe's best match
// in the result cache. Keyframes already present in the cache are served
// from it without touching the extractor or matcher.
type Scanner struct {
	catalog  *catalog.Catalog
	comparer FrameComparer
	store    *cache.Store
	opts     ScannerOptions
	log      *logrus.Logger
}

func NewScanner(cat *catalog.Catalog, comparer FrameComparer, store *cache.Store, opts ScannerOptions, log *logrus.Logger) *Scanner {
	if opts.SignatureDistance <= 0 {
		opts.SignatureDistance = DefaultSignatureDistance
	}
	if opts.Alpha <= 0 {
		opts.Alpha = compose.DefaultAlpha
	}
	return &Scanner{catalog: cat, comparer: comparer, store: store, opts: opts, log: log}
}

// Scan processes every keyframe of the video at path and returns the
// per-keyframe match results in frame order. Keyframes with no surviving
// candidate or no matching cover produce no result; that is a skip, not an
// error. Only an unreadable video is fatal.
func (s *Scanner) Scan(ctx context.Context, videoPath string) ([]MatchResult, error) {
	r, err := video.OpenReader(videoPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	selector := &video.KeyframeSelector{Stride: s.opts.Stride, Threshold: s.opts.HistThreshold}

	var results []MatchResult
	err = selector.Scan(r, func(idx int, frame gocv.Mat) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, ok, err := s.processKeyframe(ctx, videoName, idx, frame)
		if err != nil {
			return err
		}
		if ok {
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", videoName, err)
	}
	return results, nil
}

// processKeyframe serves one keyframe from the cache when possible and
// falls back to matching it. A cache hit never touches the comparer.
func (s *Scanner) processKeyframe(ctx context.Context, videoName string, idx int, frame gocv.Mat) (MatchResult, bool, error) {
	entry, hit, err := s.store.Get(ctx, videoName, idx)
	if err != nil {
		return MatchResult{}, false, err
	}
	if hit {
		s.log.WithFields(logrus.Fields{
			"video": videoName,
			"frame": idx,
		}).Debug("keyframe served from cache")
		return entryResult(entry), true, nil
	}

	res, ok := s.matchKeyframe(ctx, videoName, idx, frame)
	return res, ok, nil
}

// matchKeyframe runs the candidate filter and descriptor matching for one
// uncached keyframe and writes the outcome through to the cache.
func (s *Scanner) matchKeyframe(ctx context.Context, videoName string, idx int, frame gocv.Mat) (MatchResult, bool) {
	sig, err := vision.ComputeSignature(frame)
	if err != nil {
		s.log.WithField("frame", idx).WithError(err).Warn("keyframe signature failed, skipping")
		return MatchResult{}, false
	}

	candidates := s.catalog.Candidates(sig, s.opts.SignatureDistance)
	if len(candidates) == 0 {
		s.log.WithField("frame", idx).Debug("no signature candidates, skipping keyframe")
		return MatchResult{}, false
	}

	var best *catalog.Cover
	bestCount := 0
	for _, cover := range candidates {
		count, err := s.comparer.Compare(frame, cover)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"frame": idx,
				"cover": cover.Name,
			}).WithError(err).Debug("keyframe comparison failed")
			continue
		}
		if count > bestCount {
			best = cover
			bestCount = count
		}
	}
	if best == nil {
		return MatchResult{}, false
	}

	// Overlays are persisted whenever a pose exists, so later cache hits
	// can serve them without recomputation.
	overlay := gocv.NewMat()
	defer overlay.Close()
	if pose, ok := s.comparer.Pose(frame, best); ok {
		blended := compose.Composite(frame, best.Image, pose, s.opts.Alpha)
		blended.CopyTo(&overlay)
		blended.Close()
		pose.Close()
	}

	entry := &cache.Entry{
		VideoName:       videoName,
		FrameIndex:      idx,
		SourceName:      fmt.Sprintf("frame_%d", idx),
		TargetName:      best.Name,
		Confidence:      float64(bestCount),
		GoodMatches:     bestCount,
		TargetImagePath: best.Path,
	}
	if err := s.store.Put(ctx, entry, frame, overlay); err != nil {
		s.log.WithField("frame", idx).WithError(err).Warn("failed to cache keyframe result")
	}

	return entryResult(entry), true
}

func entryResult(e *cache.Entry) MatchResult {
	return MatchResult{
		SourceName:       e.SourceName,
		TargetName:       e.TargetName,
		Confidence:       e.Confidence,
		GoodMatches:      e.GoodMatches,
		TargetImagePath:  e.TargetImagePath,
		SourceFramePath:  e.FramePath,
		OverlayImagePath: e.OverlayPath,
	}
}
