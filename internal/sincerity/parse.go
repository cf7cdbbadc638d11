package sincerity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/schemas"
)

// Rubric keys expected in the judge reply.
const (
	KeySincerity       = "sincerity_score"
	KeyWarmth          = "warmth_score"
	KeyPersonalization = "personalization_score"
	KeyAuthenticity    = "authenticity_score"
)

// rubricObject finds a flat object mentioning sincerity_score inside chatty replies.
var rubricObject = regexp.MustCompile(`(?s)\{[^{}]*"sincerity_score"[^{}]*\}`)

// ParseRubric extracts the four metrics from a judge reply. Numbers and
// numeric strings are accepted and clamped into [0, 1], including literals
// too large for float64. A missing key, a non-numeric value, NaN or an
// explicit infinity yields *EvaluationParseError.
func ParseRubric(raw string) (Score, error) {
	content := llm.CleanJSONBlock(raw)
	if !json.Valid([]byte(content)) || !strings.Contains(content, KeySincerity) {
		if m := rubricObject.FindString(raw); m != "" {
			content = m
		}
	}

	if err := schemas.ValidateRubric(content); err != nil {
		return Score{}, &EvaluationParseError{Content: raw, Reason: "reply does not match rubric schema", Err: err}
	}

	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Score{}, &EvaluationParseError{Content: raw, Reason: "invalid JSON", Err: err}
	}

	var score Score
	targets := []struct {
		key string
		dst *float64
	}{
		{KeySincerity, &score.Sincerity},
		{KeyWarmth, &score.Warmth},
		{KeyPersonalization, &score.Personalization},
		{KeyAuthenticity, &score.Authenticity},
	}
	for _, t := range targets {
		v, err := toFloat(fields[t.key])
		if err != nil {
			return Score{}, &EvaluationParseError{Content: raw, Reason: t.key, Err: err}
		}
		*t.dst = clamp(v)
	}
	return score, nil
}

func toFloat(v any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch val := v.(type) {
	case json.Number:
		f, err = val.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(val), 64)
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("non-numeric value %v", val)
	}
	if errors.Is(err, strconv.ErrRange) {
		// Overflowed literals come back as ±Inf and clamp to the bounds.
		return f, nil
	}
	if err != nil {
		return 0, fmt.Errorf("non-numeric value %q", fmt.Sprint(v))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}
	return f, nil
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
