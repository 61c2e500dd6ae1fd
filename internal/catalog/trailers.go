package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var trailerExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
}

// TrailerIndex resolves a recognized cover name to its trailer video path.
// The mapping is by file stem: a cover named "dune" maps to "dune.mp4".
type TrailerIndex struct {
	dir           string
	byName        map[string]string
	ordered       []string
	allowFallback bool
}

// LoadTrailers indexes the trailer videos under dir. When allowFallback is
// set, a cover with no mapped trailer resolves to the first trailer in
// lexical order instead of failing; this pairs a video with an unrelated
// trailer and is therefore opt-in.
func LoadTrailers(dir string, allowFallback bool) (*TrailerIndex, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read trailer dir: %w", err)
	}

	idx := &TrailerIndex{
		dir:           dir,
		byName:        make(map[string]string),
		allowFallback: allowFallback,
	}
	for _, entry := range entries {
		if entry.IsDir() || !trailerExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		idx.byName[stem] = filepath.Join(dir, entry.Name())
		idx.ordered = append(idx.ordered, stem)
	}
	sort.Strings(idx.ordered)

	return idx, nil
}

func (t *TrailerIndex) Len() int { return len(t.ordered) }

// ForCover returns the trailer path for the given cover name.
func (t *TrailerIndex) ForCover(name string) (string, error) {
	if path, ok := t.byName[name]; ok {
		return path, nil
	}
	if t.allowFallback && len(t.ordered) > 0 {
		return t.byName[t.ordered[0]], nil
	}
	return "", fmt.Errorf("no trailer mapped for cover %q", name)
}
