// Package replace runs the end-to-end video replacement pipeline: identify
// the cover a video shows, then re-render the video with trailer footage
// composited over the cover frame by frame.
package replace

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/bookreel/bookreel/internal/catalog"
	"github.com/bookreel/bookreel/internal/compose"
	"github.com/bookreel/bookreel/internal/identify"
	"github.com/bookreel/bookreel/internal/track"
	"github.com/bookreel/bookreel/internal/video"
	"github.com/bookreel/bookreel/internal/vision"
)

type Options struct {
	// MinConfidence is the weighted-average confidence a cover must reach
	// during identification.
	MinConfidence float64
	// Alpha is the blend factor for composited frames.
	Alpha float64
	// Workers bounds the per-frame worker pool.
	Workers int
	// BatchSize bounds how many frames are held in memory at once.
	BatchSize int
	// AllowTrailerFallback opts in to pairing an unmapped cover with the
	// first available trailer.
	AllowTrailerFallback bool
}

// Result is the terminal record of a replacement run. Constructed exactly
// once per run: either a success summary or an error sentinel with no
// frame statistics.
type Result struct {
	SourceVideo    string        `json:"source_video"`
	TargetBook     string        `json:"target_book"`
	ReplacedFrames int           `json:"replaced_frames_count"`
	TotalFrames    int           `json:"total_frames_processed"`
	OutputPath     string        `json:"output_video_path,omitempty"`
	Success        bool          `json:"success"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Elapsed        time.Duration `json:"processing_time"`
}

func errorResult(sourceVideo, msg string, start time.Time) *Result {
	return &Result{
		SourceVideo:  sourceVideo,
		TargetBook:   "error",
		Success:      false,
		ErrorMessage: msg,
		Elapsed:      time.Since(start),
	}
}

// Service orchestrates replacement runs against a fixed catalog and
// trailer index. It owns no video handles between runs.
type Service struct {
	catalog  *catalog.Catalog
	trailers *catalog.TrailerIndex
	opts     Options
	log      *logrus.Logger
}

func NewService(cat *catalog.Catalog, trailers *catalog.TrailerIndex, opts Options, log *logrus.Logger) *Service {
	if opts.Alpha <= 0 {
		opts.Alpha = compose.DefaultAlpha
	}
	return &Service{catalog: cat, trailers: trailers, opts: opts, log: log}
}

// Replace runs the full pipeline for the video at videoPath, writing the
// result to outputPath. Input errors and identification failure produce an
// error Result; per-frame failures degrade coverage but never fail the run.
func (s *Service) Replace(videoPath, outputPath string) *Result {
	start := time.Now()
	sourceName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))

	r, err := video.OpenReader(videoPath)
	if err != nil {
		return errorResult(sourceName, "cannot open input video: "+err.Error(), start)
	}
	defer r.Close()

	comparer := identify.NewComparer()
	defer comparer.Close()

	identifier := identify.NewIdentifier(s.catalog, comparer, s.log)
	book, ok := identifier.IdentifyInVideo(r, s.opts.MinConfidence)
	if !ok {
		return errorResult(sourceName, "no book detected above confidence threshold", start)
	}
	defer book.Close()

	trailerPath, err := s.trailers.ForCover(book.Name)
	if err != nil {
		return errorResult(sourceName, err.Error(), start)
	}

	trailerFrames, err := video.LoadTrailerFrames(trailerPath, book.Image.Cols(), book.Image.Rows())
	if err != nil {
		return errorResult(sourceName, err.Error(), start)
	}
	defer video.CloseFrames(trailerFrames)

	w, err := video.NewWriter(outputPath, r.Meta())
	if err != nil {
		return errorResult(sourceName, err.Error(), start)
	}
	defer w.Close()

	workers := s.opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	proc := newFrameProcessor(book, trailerFrames, s.opts.Alpha, workers, s.log)
	defer proc.Close()

	sched := &Scheduler{Workers: workers, BatchSize: s.opts.BatchSize, Log: s.log}
	replaced, err := sched.Run(r, w, proc, nil)
	if err != nil {
		return errorResult(sourceName, err.Error(), start)
	}

	res := &Result{
		SourceVideo:    sourceName,
		TargetBook:     book.Name,
		ReplacedFrames: replaced,
		TotalFrames:    r.Meta().FrameCount,
		OutputPath:     outputPath,
		Success:        true,
		Elapsed:        time.Since(start),
	}
	s.log.WithFields(logrus.Fields{
		"video":    sourceName,
		"book":     book.Name,
		"replaced": replaced,
		"total":    res.TotalFrames,
		"elapsed":  res.Elapsed,
	}).Info("replacement run complete")
	return res
}

// frameProcessor composites a trailer frame over the tracked cover region.
// Each worker slot owns a Tracker so descriptor extraction never shares
// mutable state; the reference FeatureSet is computed once and shared
// read-only across the pool.
type frameProcessor struct {
	trackers []*track.Tracker
	refFeats *vision.FeatureSet
	base     gocv.Mat
	trailer  []gocv.Mat
	alpha    float64
	log      *logrus.Logger
}

func newFrameProcessor(book *identify.BookIdentification, trailer []gocv.Mat, alpha float64, workers int, log *logrus.Logger) *frameProcessor {
	ex := vision.NewExtractor()
	defer ex.Close()
	refFeats := ex.Extract(book.Image)

	trackers := make([]*track.Tracker, workers)
	for i := range trackers {
		trackers[i] = track.New(refFeats)
	}

	return &frameProcessor{
		trackers: trackers,
		refFeats: refFeats,
		base:     book.Base,
		trailer:  trailer,
		alpha:    alpha,
		log:      log,
	}
}

func (p *frameProcessor) Process(worker, frameIdx int, frame gocv.Mat) (gocv.Mat, bool) {
	trailerIdx := frameIdx
	if trailerIdx >= len(p.trailer) {
		trailerIdx = len(p.trailer) - 1
	}
	replacement := p.trailer[trailerIdx]

	pose, tracked := p.trackers[worker].Pose(frame)
	if !tracked {
		// Intermittent tracking loss is expected; the base pose keeps the
		// cover covered at the cost of accuracy under camera motion.
		p.log.WithField("frame", frameIdx).Debug("pose tracking failed, using base pose")
		pose = p.base
	}

	out := compose.Composite(frame, replacement, pose, p.alpha)
	if tracked {
		pose.Close()
	}
	return out, tracked
}

func (p *frameProcessor) Close() {
	for _, t := range p.trackers {
		t.Close()
	}
	p.refFeats.Close()
}
