// Package catalog loads the book/poster cover catalog and its trailer
// mapping from disk.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/bookreel/bookreel/internal/vision"
)

var coverExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Cover is one catalog entry: a reference image plus its precomputed
// perceptual signature.
type Cover struct {
	Name      string
	Path      string
	Image     gocv.Mat
	Signature vision.Signature
}

type Catalog struct {
	covers []*Cover
	log    *logrus.Logger
}

// New builds a catalog from preloaded covers, sorted by name. The catalog
// takes ownership of the cover images.
func New(covers []*Cover, log *logrus.Logger) *Catalog {
	sort.Slice(covers, func(i, j int) bool { return covers[i].Name < covers[j].Name })
	return &Catalog{covers: covers, log: log}
}

// Load reads every cover image under dir, sorted by filename so catalog
// iteration order is stable. Unreadable images are skipped with a warning;
// signatures are computed once here so candidate filtering is amortized.
func Load(dir string, log *logrus.Logger) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	var covers []*Cover
	for _, entry := range entries {
		if entry.IsDir() || !coverExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		img := gocv.IMRead(path, gocv.IMReadColor)
		if img.Empty() {
			log.WithField("path", path).Warn("skipping unreadable cover image")
			continue
		}

		sig, err := vision.ComputeSignature(img)
		if err != nil {
			img.Close()
			log.WithField("path", path).WithError(err).Warn("skipping cover without signature")
			continue
		}

		covers = append(covers, &Cover{
			Name:      strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Path:      path,
			Image:     img,
			Signature: sig,
		})
	}

	log.WithField("covers", len(covers)).Info("catalog loaded")
	return New(covers, log), nil
}

func (c *Catalog) Covers() []*Cover { return c.covers }

func (c *Catalog) Len() int { return len(c.covers) }

// Candidates returns the covers whose signature is within maxDistance of
// sig, in catalog order. An empty result means the frame should be skipped
// entirely rather than matched against the full catalog.
func (c *Catalog) Candidates(sig vision.Signature, maxDistance int) []*Cover {
	var out []*Cover
	for _, cover := range c.covers {
		if cover.Signature.Distance(sig) <= maxDistance {
			out = append(out, cover)
		}
	}
	return out
}

func (c *Catalog) Close() {
	for _, cover := range c.covers {
		cover.Image.Close()
	}
}
