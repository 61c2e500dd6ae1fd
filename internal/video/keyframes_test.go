package video

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

// sliceStream replays a fixed sequence of frames.
type sliceStream struct {
	frames []gocv.Mat
	next   int
}

func (s *sliceStream) ReadNext(dst *gocv.Mat) bool {
	if s.next >= len(s.frames) {
		return false
	}
	s.frames[s.next].CopyTo(dst)
	s.next++
	return true
}

func solidFrames(t *testing.T, colors ...gocv.Scalar) []gocv.Mat {
	t.Helper()
	frames := make([]gocv.Mat, len(colors))
	for i, c := range colors {
		frames[i] = gocv.NewMatWithSizeFromScalar(c, 32, 32, gocv.MatTypeCV8UC3)
	}
	t.Cleanup(func() {
		for i := range frames {
			frames[i].Close()
		}
	})
	return frames
}

func repeat(c gocv.Scalar, n int) []gocv.Scalar {
	out := make([]gocv.Scalar, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestKeyframesStaticVideoEmitsOnce(t *testing.T) {
	blue := gocv.NewScalar(255, 0, 0, 0)
	stream := &sliceStream{frames: solidFrames(t, repeat(blue, 10)...)}

	var emitted []int
	sel := &KeyframeSelector{Stride: 2, Threshold: 0.3}
	err := sel.Scan(stream, func(idx int, frame gocv.Mat) error {
		emitted = append(emitted, idx)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(emitted) != 1 || emitted[0] != 0 {
		t.Errorf("emitted %v, want just the first sample", emitted)
	}
}

func TestKeyframesEmitOnSceneChange(t *testing.T) {
	blue := gocv.NewScalar(255, 0, 0, 0)
	red := gocv.NewScalar(0, 0, 255, 0)
	colors := append(repeat(blue, 3), repeat(red, 3)...)
	stream := &sliceStream{frames: solidFrames(t, colors...)}

	var emitted []int
	sel := &KeyframeSelector{Stride: 1, Threshold: 0.3}
	err := sel.Scan(stream, func(idx int, frame gocv.Mat) error {
		emitted = append(emitted, idx)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(emitted) != 2 || emitted[0] != 0 || emitted[1] != 3 {
		t.Errorf("emitted %v, want [0 3]", emitted)
	}
}

func TestKeyframesStrideSkipsFrames(t *testing.T) {
	blue := gocv.NewScalar(255, 0, 0, 0)
	red := gocv.NewScalar(0, 0, 255, 0)
	// The scene changes at frame 3; with stride 2 only frames 0, 2, 4, ...
	// are sampled, so the change is seen at frame 4.
	colors := append(repeat(blue, 3), repeat(red, 4)...)
	stream := &sliceStream{frames: solidFrames(t, colors...)}

	var emitted []int
	sel := &KeyframeSelector{Stride: 2, Threshold: 0.3}
	err := sel.Scan(stream, func(idx int, frame gocv.Mat) error {
		emitted = append(emitted, idx)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(emitted) != 2 || emitted[0] != 0 || emitted[1] != 4 {
		t.Errorf("emitted %v, want [0 4]", emitted)
	}
}

func TestKeyframesEmitErrorStopsScan(t *testing.T) {
	blue := gocv.NewScalar(255, 0, 0, 0)
	stream := &sliceStream{frames: solidFrames(t, repeat(blue, 10)...)}

	sentinel := errors.New("stop")
	sel := &KeyframeSelector{Stride: 1, Threshold: 0.3}
	err := sel.Scan(stream, func(idx int, frame gocv.Mat) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Scan returned %v, want the emit error", err)
	}
	if stream.next != 1 {
		t.Errorf("scan read %d frames after emit failed, want 1", stream.next)
	}
}

func TestKeyframesEmptyStream(t *testing.T) {
	sel := &KeyframeSelector{}
	err := sel.Scan(&sliceStream{}, func(idx int, frame gocv.Mat) error {
		t.Fatal("emit called for an empty stream")
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
}
