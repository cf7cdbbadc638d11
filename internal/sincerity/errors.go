package sincerity

import "fmt"

// EvaluationParseError reports a judge reply that does not carry four
// numeric rubric values.
type EvaluationParseError struct {
	Content string
	Reason  string
	Err     error
}

func (e *EvaluationParseError) Error() string {
	content := e.Content
	if len(content) > 200 {
		content = content[:200] + "..."
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to parse sincerity evaluation: %s: %v (content: %s)", e.Reason, e.Err, content)
	}
	return fmt.Sprintf("failed to parse sincerity evaluation: %s (content: %s)", e.Reason, content)
}

func (e *EvaluationParseError) Unwrap() error {
	return e.Err
}
