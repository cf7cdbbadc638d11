package sincerity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposite_Weights(t *testing.T) {
	assert.InDelta(t, 1.0, WeightSincerity+WeightWarmth+WeightPersonalization+WeightAuthenticity, 1e-12)

	tests := []struct {
		name  string
		score Score
		want  float64
	}{
		{name: "worked example", score: Score{0.9, 0.5, 0.5, 0.5}, want: 0.66},
		{name: "all zero", score: Score{}, want: 0},
		{name: "all one", score: Score{1, 1, 1, 1}, want: 1},
		{name: "sincerity only", score: Score{Sincerity: 1}, want: 0.4},
		{name: "others only", score: Score{0, 1, 1, 1}, want: 0.6},
		{name: "mixed", score: Score{0.25, 0.75, 0.1, 0.3}, want: 0.4*0.25 + 0.2*0.75 + 0.2*0.1 + 0.2*0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.score.Composite(), 1e-9)
		})
	}
}

func TestComposite_Grid(t *testing.T) {
	steps := []float64{0, 0.1, 0.33, 0.5, 0.77, 1}
	for _, s := range steps {
		for _, w := range steps {
			for _, p := range steps {
				for _, a := range steps {
					got := Score{s, w, p, a}.Composite()
					assert.InDelta(t, 0.4*s+0.2*w+0.2*p+0.2*a, got, 1e-9)
					assert.GreaterOrEqual(t, got, 0.0)
					assert.LessOrEqual(t, got, 1.0+1e-12)
				}
			}
		}
	}
}

func TestMeets_BoundaryInclusive(t *testing.T) {
	score := Score{Sincerity: 1, Warmth: 1}
	composite := score.Composite()

	assert.True(t, score.Meets(composite))
	assert.True(t, score.Meets(composite-1e-9))
	assert.False(t, score.Meets(composite+1e-9))
	assert.True(t, Score{}.Meets(0))
}
