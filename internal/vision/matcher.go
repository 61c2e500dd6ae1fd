package vision

import (
	"gocv.io/x/gocv"
)

// ratioThreshold is Lowe's nearest-neighbor ratio test bound: the best
// match must be closer than this multiple of the second-best to survive.
const ratioThreshold = 0.7

// Correspondence pairs a keypoint index in the query FeatureSet with one
// in the train FeatureSet.
type Correspondence struct {
	Query int
	Train int
}

// Matcher matches SIFT descriptor sets with a brute-force L2 matcher and
// filters ambiguous matches with the ratio test.
//
// Not safe for concurrent use; give each worker its own Matcher.
type Matcher struct {
	bf gocv.BFMatcher
}

func NewMatcher() *Matcher {
	return &Matcher{bf: gocv.NewBFMatcher()}
}

// Match returns the ratio-test survivors between query and train. Either
// side being empty yields an empty result, never an error.
func (m *Matcher) Match(query, train *FeatureSet) []Correspondence {
	if query.Empty() || train.Empty() {
		return nil
	}

	pairs := m.bf.KnnMatch(query.Descriptors, train.Descriptors, 2)

	var good []Correspondence
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		if pair[0].Distance < ratioThreshold*pair[1].Distance {
			good = append(good, Correspondence{Query: pair[0].QueryIdx, Train: pair[0].TrainIdx})
		}
	}
	return good
}

func (m *Matcher) Close() {
	m.bf.Close()
}
