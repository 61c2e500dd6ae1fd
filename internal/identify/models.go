package identify

import (
	"gocv.io/x/gocv"
)

// MatchResult is the outcome of comparing one source image against one
// catalog entry. Immutable once constructed.
type MatchResult struct {
	SourceName       string  `json:"source_name"`
	TargetName       string  `json:"target_name"`
	Confidence       float64 `json:"confidence_score"`
	GoodMatches      int     `json:"good_matches_count"`
	TargetImagePath  string  `json:"target_image_path"`
	SourceFramePath  string  `json:"source_frame_path,omitempty"`
	OverlayImagePath string  `json:"overlay_image_path,omitempty"`
	Err              string  `json:"error_message,omitempty"`
}

// BookIdentification is the chosen catalog entry for a video, valid only
// after identification succeeds. Base is the reference-to-frame homography
// estimated from the middle temporal sample; it is the fallback pose for
// frames where per-frame tracking fails.
type BookIdentification struct {
	Name       string
	ImagePath  string
	Image      gocv.Mat
	Confidence float64
	Base       gocv.Mat
}

func (b *BookIdentification) Close() {
	if b == nil {
		return
	}
	b.Image.Close()
	b.Base.Close()
}
