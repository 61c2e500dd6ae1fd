package replace

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/bookreel/bookreel/internal/video"
)

const (
	DefaultWorkers   = 4
	DefaultBatchSize = 64
)

// Source provides frame metadata and random-access reads; *video.Reader
// satisfies it.
type Source interface {
	Meta() video.Meta
	ReadAt(idx int, dst *gocv.Mat) error
}

// Sink receives output frames strictly in input order; *video.Writer
// satisfies it.
type Sink interface {
	Write(frame gocv.Mat) error
}

// Processor performs the per-frame tracking and compositing work. worker
// identifies which pool slot is calling so implementations can keep
// worker-local state; two calls with the same worker id never overlap.
// Process always returns a writable frame (owned by the scheduler after
// return) and whether the frame was actually replaced; it must recover
// internally from per-frame failures.
type Processor interface {
	Process(worker, frameIdx int, frame gocv.Mat) (gocv.Mat, bool)
}

// Scheduler drives per-frame work batch by batch across a bounded worker
// pool while keeping output frame order equal to input frame order. All
// reads, writes and sequencing happen on the calling goroutine; only
// Process runs on workers.
type Scheduler struct {
	Workers   int
	BatchSize int
	Log       *logrus.Logger
}

// slot is the per-frame state within one batch. A frame moves
// pending -> dispatched -> completed, then is written exactly once.
type slot struct {
	raw      gocv.Mat
	out      gocv.Mat
	readable bool
	replaced bool
}

// Run processes every frame of src and appends the results to sink in
// order, returning the number of replaced frames. A frame whose read
// fails is written as a blank filler of identical dimensions, so the
// output frame count always equals the input frame count. Only a sink
// write failure aborts the run.
func (s *Scheduler) Run(src Source, sink Sink, proc Processor, progress func(done, total int)) (int, error) {
	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	meta := src.Meta()
	total := meta.FrameCount
	replaced := 0

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}

		slots := s.extractBatch(src, start, end)
		s.processBatch(slots, proc, start, workers)

		if err := s.writeBatch(sink, slots, meta, &replaced); err != nil {
			return replaced, err
		}

		if progress != nil {
			progress(end, total)
		}
		if s.Log != nil {
			s.Log.WithFields(logrus.Fields{
				"processed": end,
				"total":     total,
			}).Info("batch written")
		}
	}

	return replaced, nil
}

// extractBatch reads the batch's raw frames sequentially. A failed read
// marks the slot unreadable without aborting the batch.
func (s *Scheduler) extractBatch(src Source, start, end int) []*slot {
	slots := make([]*slot, end-start)
	for i := range slots {
		sl := &slot{raw: gocv.NewMat()}
		if err := src.ReadAt(start+i, &sl.raw); err != nil {
			if s.Log != nil {
				s.Log.WithField("frame", start+i).WithError(err).Warn("frame unreadable, will write filler")
			}
		} else {
			sl.readable = true
		}
		slots[i] = sl
	}
	return slots
}

// processBatch dispatches readable slots to the worker pool and blocks
// until the batch completes. Results land in the slot they came from, so
// completion order never affects output order.
func (s *Scheduler) processBatch(slots []*slot, proc Processor, start, workers int) {
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range jobs {
				sl := slots[i]
				sl.out, sl.replaced = proc.Process(worker, start+i, sl.raw)
			}
		}(w)
	}

	for i, sl := range slots {
		if sl.readable {
			jobs <- i
		}
	}
	close(jobs)
	wg.Wait()
}

// writeBatch appends the batch's results in original order and releases
// the batch's buffers.
func (s *Scheduler) writeBatch(sink Sink, slots []*slot, meta video.Meta, replaced *int) error {
	for _, sl := range slots {
		var err error
		switch {
		case !sl.readable:
			filler := gocv.Zeros(meta.Height, meta.Width, gocv.MatTypeCV8UC3)
			err = sink.Write(filler)
			filler.Close()
		default:
			err = sink.Write(sl.out)
			if sl.replaced {
				*replaced++
			}
		}

		sl.raw.Close()
		if sl.readable {
			sl.out.Close()
		}

		if err != nil {
			// Release the rest of the batch before failing the run.
			releaseAfter(slots, sl)
			return fmt.Errorf("append output frame: %w", err)
		}
	}
	return nil
}

func releaseAfter(slots []*slot, failed *slot) {
	seen := false
	for _, sl := range slots {
		if sl == failed {
			seen = true
			continue
		}
		if !seen {
			continue
		}
		sl.raw.Close()
		if sl.readable {
			sl.out.Close()
		}
	}
}
