package greeting

import (
	"strings"

	"github.com/jonathan/greeting-personalizer/internal/prompts"
)

// TextPrompt renders the greeting-writing instruction for req. The composed
// fragments for req are included as a mood line so text and image share one
// vocabulary. It returns the resolved category alongside the prompt.
func (c *Composer) TextPrompt(req Request) (string, EventCategory, error) {
	fragments, err := c.Compose(req)
	if err != nil {
		return "", "", err
	}
	req = req.WithDefaults()
	// Compose already validated the date, so Classify cannot fail here.
	category, _ := Classify(req.EventDate, req.EventCategory)

	var lines []string
	if name := strings.TrimSpace(req.ClientName); name != "" {
		lines = append(lines, "Клиент: "+name)
	}
	if company := strings.TrimSpace(req.CompanyName); company != "" {
		lines = append(lines, "Компания: "+company)
	}
	if position := strings.TrimSpace(req.Position); position != "" {
		lines = append(lines, "Должность: "+position)
	}
	lines = append(lines, SegmentDescription(req.ClientSegment), ToneDescription(req.Tone))
	if req.InteractionHistory != nil && strings.TrimSpace(req.InteractionHistory.Topic) != "" {
		lines = append(lines, "Тема последнего взаимодействия: "+strings.TrimSpace(req.InteractionHistory.Topic))
	}
	if prefs := joinPreferences(req.Preferences); prefs != "" {
		lines = append(lines, "Предпочтения: "+prefs)
	}
	lines = append(lines, "Настроение и образы: "+fragments)

	tmpl := prompts.MustGet(prompts.GreetingFile, "generate-greeting")
	prompt := prompts.Format(tmpl, map[string]string{
		"Event":   CategoryName(category),
		"Context": strings.Join(lines, "\n"),
		"Tone":    ToneDescription(req.Tone),
	})
	return prompt, category, nil
}

// EvaluationContextFor returns the rubric context for req with category resolved.
func EvaluationContextFor(req Request, category EventCategory) EvaluationContext {
	req = req.WithDefaults()
	return EvaluationContext{
		EventCategory: category,
		ClientSegment: req.ClientSegment,
		Tone:          req.Tone,
	}
}
