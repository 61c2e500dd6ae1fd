package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

const outputCodec = "mp4v"

// Writer appends fixed-dimension frames to an output container. It must be
// closed on every exit path to produce a valid file.
type Writer struct {
	w      *gocv.VideoWriter
	path   string
	frames int
}

func NewWriter(path string, meta Meta) (*Writer, error) {
	w, err := gocv.VideoWriterFile(path, outputCodec, meta.FPS, meta.Width, meta.Height, true)
	if err != nil {
		return nil, fmt.Errorf("create output video %s: %w", path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("create output video %s: writer not opened", path)
	}
	return &Writer{w: w, path: path}, nil
}

func (w *Writer) Path() string { return w.path }

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int { return w.frames }

func (w *Writer) Write(frame gocv.Mat) error {
	if err := w.w.Write(frame); err != nil {
		return fmt.Errorf("write frame %d to %s: %w", w.frames, w.path, err)
	}
	w.frames++
	return nil
}

func (w *Writer) Close() error {
	return w.w.Close()
}
