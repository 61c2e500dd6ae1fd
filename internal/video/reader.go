package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Meta describes an opened video stream.
type Meta struct {
	FPS        float64
	Width      int
	Height     int
	FrameCount int
}

// Reader wraps a capture handle with random-access and sequential reads.
//
// Not safe for concurrent use; all reads must come from one goroutine.
type Reader struct {
	cap  *gocv.VideoCapture
	path string
	meta Meta
}

// OpenReader opens the video at path. An unreadable path is a fatal input
// error for the run.
func OpenReader(path string) (*Reader, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("open video %s: not a readable video", path)
	}

	return &Reader{
		cap:  cap,
		path: path,
		meta: Meta{
			FPS:        cap.Get(gocv.VideoCaptureFPS),
			Width:      int(cap.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(cap.Get(gocv.VideoCaptureFrameHeight)),
			FrameCount: int(cap.Get(gocv.VideoCaptureFrameCount)),
		},
	}, nil
}

func (r *Reader) Path() string { return r.path }

func (r *Reader) Meta() Meta { return r.meta }

// ReadAt seeks to frame idx and decodes it into dst. A failed read is
// reported as an error so callers can mark the slot failed without
// aborting the batch.
func (r *Reader) ReadAt(idx int, dst *gocv.Mat) error {
	r.cap.Set(gocv.VideoCapturePosFrames, float64(idx))
	if ok := r.cap.Read(dst); !ok || dst.Empty() {
		return fmt.Errorf("read frame %d of %s: no data", idx, r.path)
	}
	return nil
}

// ReadNext decodes the next frame in stream order into dst, returning
// false at end of stream.
func (r *Reader) ReadNext(dst *gocv.Mat) bool {
	return r.cap.Read(dst) && !dst.Empty()
}

func (r *Reader) Close() error {
	return r.cap.Close()
}
