package greeting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextPrompt_FullRequest(t *testing.T) {
	req := Request{
		EventDate:          "08.03.2025",
		ClientName:         "Анна Смирнова",
		CompanyName:        "Весна",
		Position:           "Финансовый директор",
		ClientSegment:      SegmentVIP,
		Tone:               ToneFriendly,
		Preferences:        []string{"тюльпаны", "театр"},
		InteractionHistory: &InteractionHistory{Topic: "открытие кредитной линии"},
	}

	prompt, category, err := NewComposer(Russian).TextPrompt(req)
	require.NoError(t, err)

	assert.Equal(t, WomensDay, category)
	assert.Contains(t, prompt, "по случаю Международный женский день (8 Марта).")
	assert.Contains(t, prompt, "Клиент: Анна Смирнова")
	assert.Contains(t, prompt, "Компания: Весна")
	assert.Contains(t, prompt, "Должность: Финансовый директор")
	assert.Contains(t, prompt, "VIP-клиент, требует премиум подхода")
	assert.Contains(t, prompt, "- Тон: теплый, дружеский тон")
	assert.Contains(t, prompt, "Тема последнего взаимодействия: открытие кредитной линии")
	assert.Contains(t, prompt, "Предпочтения: тюльпаны, театр")
	assert.Contains(t, prompt, "Настроение и образы: весенние цветы")
	assert.Contains(t, prompt, "контекст финансовых услуг")
	assert.NotContains(t, prompt, "{{.")
}

func TestTextPrompt_Defaults(t *testing.T) {
	prompt, category, err := NewComposer(Russian).TextPrompt(Request{EventDate: "01.01.2026"})
	require.NoError(t, err)

	assert.Equal(t, NewYear, category)
	assert.Contains(t, prompt, "по случаю Новый год.")
	assert.Contains(t, prompt, "стандартный клиент")
	assert.Contains(t, prompt, "официальный, уважительный тон")
	assert.NotContains(t, prompt, "Клиент:")
}

func TestTextPrompt_ParseError(t *testing.T) {
	_, _, err := NewComposer(Russian).TextPrompt(Request{EventDate: "2026-01-01"})
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestEvaluationContextFor(t *testing.T) {
	ectx := EvaluationContextFor(Request{EventDate: "10.10.2025"}, Birthday)
	assert.Equal(t, EvaluationContext{EventCategory: Birthday, ClientSegment: SegmentStandard, Tone: ToneFormal}, ectx)
}
