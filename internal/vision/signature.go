package vision

import (
	"errors"
	"math/bits"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// Signature is a 64-bit perceptual hash of a still image, used only for
// cheap candidate pruning. Compared by Hamming distance.
type Signature [8]byte

// ComputeSignature computes the pHash of img.
func ComputeSignature(img gocv.Mat) (Signature, error) {
	if img.Empty() {
		return Signature{}, errors.New("signature: empty image")
	}

	out := gocv.NewMat()
	defer out.Close()

	contrib.PHash{}.Compute(img, &out)
	if out.Empty() {
		return Signature{}, errors.New("signature: hash computation produced no data")
	}

	var s Signature
	copy(s[:], out.ToBytes())
	return s, nil
}

// Distance returns the Hamming distance between two signatures.
func (s Signature) Distance(o Signature) int {
	d := 0
	for i := range s {
		d += bits.OnesCount8(s[i] ^ o[i])
	}
	return d
}
