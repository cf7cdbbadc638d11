package llm

import "strings"

// CleanJSONBlock strips markdown code fences, conversational preambles and
// trailing chatter around a JSON object or array. Text that carries no JSON
// is returned trimmed but otherwise unchanged.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Drop a language tag on the fence line, e.g. ```json.
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	switch {
	case objStart < 0 && arrStart < 0:
		return text
	case arrStart < 0 || (objStart >= 0 && objStart < arrStart):
		if obj := balanced(text[objStart:], '{', '}'); obj != "" {
			return obj
		}
	default:
		if arr := balanced(text[arrStart:], '[', ']'); arr != "" {
			return arr
		}
	}
	return text
}

func extractJSONObject(s string) string {
	return balanced(s, '{', '}')
}

func extractJSONArray(s string) string {
	return balanced(s, '[', ']')
}

// balanced returns the prefix of s from its opening delimiter to the
// matching closeCh, skipping delimiters inside JSON strings. s must start with
// openCh; otherwise, or if unbalanced, it returns "".
func balanced(s string, openCh, closeCh byte) string {
	if len(s) == 0 || s[0] != openCh {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
