package store

import "fmt"

// RelevanceMode tells how a cutoff value is compared against a candidate.
type RelevanceMode int

const (
	// RelevanceDistance admits candidates whose cosine distance is at most
	// the cutoff. Lower is more similar.
	RelevanceDistance RelevanceMode = iota
	// RelevanceScore admits candidates whose similarity score is strictly
	// greater than the cutoff. Higher is more similar.
	RelevanceScore
)

func (m RelevanceMode) String() string {
	switch m {
	case RelevanceDistance:
		return "distance"
	case RelevanceScore:
		return "score"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Relevance is a cutoff tagged with the mode it was written for.
type Relevance struct {
	Mode  RelevanceMode
	Value float32
}

// MaxDistance builds a distance cutoff: a candidate is kept when its cosine
// distance is <= d.
func MaxDistance(d float32) Relevance {
	return Relevance{Mode: RelevanceDistance, Value: d}
}

// MinScore builds a score cutoff: a candidate is kept when its similarity
// score is > s.
func MinScore(s float32) Relevance {
	return Relevance{Mode: RelevanceScore, Value: s}
}

// Admits reports whether a candidate measured in the cutoff's own mode passes.
func (r Relevance) Admits(v float32) bool {
	if r.Mode == RelevanceScore {
		return v > r.Value
	}
	return v <= r.Value
}

func (r Relevance) String() string {
	if r.Mode == RelevanceScore {
		return fmt.Sprintf("score > %g", r.Value)
	}
	return fmt.Sprintf("distance <= %g", r.Value)
}

// FindOptions controls a Find call.
type FindOptions struct {
	// MaxResults caps the number of returned entries. Must be positive.
	MaxResults int
	// Cutoff is the admission threshold, see Relevance.
	Cutoff Relevance
}

// Validate checks the options against the mode of the backend that will
// evaluate them.
func (o FindOptions) Validate(mode RelevanceMode) error {
	if o.MaxResults <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxResults, o.MaxResults)
	}
	if o.Cutoff.Mode != mode {
		return &ErrCutoffMode{Expected: mode, Actual: o.Cutoff.Mode}
	}
	return nil
}
