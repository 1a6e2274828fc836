package placement

// Frequency pins keys to the workers observed serving them once the key has
// been accessed often enough. Colder keys yield no opinion, which lets the
// engine fall back to its availability-first replication default.
type Frequency[K comparable] struct {
	// MinObservations is the access count below which the predictor stays
	// silent (defaults to 8 when <= 0).
	MinObservations uint64
	// MaxTargets caps the proposed worker set (defaults to 2 when <= 0).
	MaxTargets int
}

// NewFrequency builds a Frequency predictor.
func NewFrequency[K comparable](minObservations uint64, maxTargets int) *Frequency[K] {
	if minObservations == 0 {
		minObservations = 8
	}
	if maxTargets <= 0 {
		maxTargets = 2
	}
	return &Frequency[K]{MinObservations: minObservations, MaxTargets: maxTargets}
}

// PredictPlacement proposes the most recent serving workers for hot keys.
func (p *Frequency[K]) PredictPlacement(_ K, hist History) []string {
	min, max := p.MinObservations, p.MaxTargets
	if min == 0 {
		min = 8
	}
	if max <= 0 {
		max = 2
	}
	if hist.Count < min || len(hist.Workers) == 0 {
		return nil
	}
	n := len(hist.Workers)
	if n > max {
		n = max
	}
	return append([]string(nil), hist.Workers[:n]...)
}

var _ Predictor[string] = (*Frequency[string])(nil)
