package greeting

import (
	"fmt"
	"strings"
)

const fragmentSeparator = ", "

// Composer builds descriptive prompts from requests using one fragment table.
// The algorithm is the same for every language; only the table differs.
type Composer struct {
	table FragmentTable
}

// NewComposer returns a Composer for the given language.
func NewComposer(lang Language) *Composer {
	return &Composer{table: Table(lang)}
}

// NewComposerWithTable returns a Composer over a caller-supplied table.
func NewComposerWithTable(table FragmentTable) *Composer {
	return &Composer{table: table}
}

// Language reports the language of the composer's table.
func (c *Composer) Language() Language {
	return c.table.Language
}

// Compose resolves the category and concatenates fragments in fixed order:
// category, tone, segment, company, position, preferences, topic.
// Empty fragments are skipped. ParseError from classification is returned unchanged.
func (c *Composer) Compose(req Request) (string, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return "", err
	}

	category, err := Classify(req.EventDate, req.EventCategory)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, 8)
	add := func(fragment string) {
		if f := strings.TrimSpace(fragment); f != "" {
			parts = append(parts, f)
		}
	}

	add(c.table.Categories[category])
	add(c.table.Tones[req.Tone])
	add(c.table.Segments[req.ClientSegment])

	if company := strings.TrimSpace(req.CompanyName); company != "" {
		add(fmt.Sprintf(c.table.CompanyFormat, company))
	}
	if req.Position != "" {
		add(matchKeyword(c.table.Positions, req.Position))
	}
	if prefs := joinPreferences(req.Preferences); prefs != "" {
		add(c.table.PreferencePrefix + prefs)
	}
	if req.InteractionHistory != nil && strings.TrimSpace(req.InteractionHistory.Topic) != "" {
		topic := matchKeyword(c.table.Topics, req.InteractionHistory.Topic)
		if topic == "" {
			topic = c.table.TopicFallback
		}
		add(topic)
	}

	return strings.Join(parts, fragmentSeparator), nil
}

// matchKeyword returns the fragment of the first rule with a substring
// contained in text, compared case-insensitively.
func matchKeyword(rules []KeywordRule, text string) string {
	lowered := strings.ToLower(text)
	for _, rule := range rules {
		for _, sub := range rule.Substrings {
			if strings.Contains(lowered, strings.ToLower(sub)) {
				return rule.Fragment
			}
		}
	}
	return ""
}

func joinPreferences(prefs []string) string {
	kept := make([]string, 0, len(prefs))
	for _, p := range prefs {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, fragmentSeparator)
}
