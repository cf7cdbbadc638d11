// Package sincerity scores greeting text on a four-metric rubric judged by a
// text-generation collaborator and reduces it to a weighted composite.
package sincerity

// Rubric weights. They sum to 1.0; adding a metric means redefining all of them.
const (
	WeightSincerity       = 0.4
	WeightWarmth          = 0.2
	WeightPersonalization = 0.2
	WeightAuthenticity    = 0.2
)

// DefaultMinSincerity is the acceptance threshold used when none is configured.
const DefaultMinSincerity = 0.6

// Score holds the four rubric metrics, each in [0, 1].
type Score struct {
	Sincerity       float64 `json:"sincerity_score"`
	Warmth          float64 `json:"warmth_score"`
	Personalization float64 `json:"personalization_score"`
	Authenticity    float64 `json:"authenticity_score"`
}

// Composite is the weighted sum of the four metrics.
func (s Score) Composite() float64 {
	return WeightSincerity*s.Sincerity +
		WeightWarmth*s.Warmth +
		WeightPersonalization*s.Personalization +
		WeightAuthenticity*s.Authenticity
}

// Meets reports whether the composite reaches threshold. Equality passes.
func (s Score) Meets(threshold float64) bool {
	return s.Composite() >= threshold
}
