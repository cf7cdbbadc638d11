// Package greeting holds the greeting domain model: event categories, client
// segments, tones, the request value, date classification and prompt composition.
package greeting

// EventCategory is the closed set of occasions a greeting can celebrate.
type EventCategory string

const (
	NewYear             EventCategory = "new_year"
	Birthday            EventCategory = "birthday"
	WomensDay           EventCategory = "womens_day"
	ProfessionalHoliday EventCategory = "professional_holiday"
	CompanyAnniversary  EventCategory = "company_anniversary"
	FoundingDay         EventCategory = "founding_day"
)

// Categories lists every EventCategory in declaration order.
var Categories = []EventCategory{
	NewYear, Birthday, WomensDay, ProfessionalHoliday, CompanyAnniversary, FoundingDay,
}

// Valid reports whether c belongs to the closed category set.
func (c EventCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ClientSegment is the client tier used to pick quality fragments.
type ClientSegment string

const (
	SegmentVIP      ClientSegment = "vip"
	SegmentNew      ClientSegment = "new"
	SegmentLoyal    ClientSegment = "loyal"
	SegmentStandard ClientSegment = "standard"
)

// Tone is the requested stylistic register.
type Tone string

const (
	ToneFormal   Tone = "formal"
	ToneFriendly Tone = "friendly"
	ToneCreative Tone = "creative"
)

const (
	DefaultSegment = SegmentStandard
	DefaultTone    = ToneFormal
)

// InteractionHistory describes the last contact with the client.
type InteractionHistory struct {
	LastContact string `json:"last_contact,omitempty"`
	Topic       string `json:"topic,omitempty"`
}

// Request is the structured input for one greeting. It is built by the caller,
// consumed once and never persisted by this package.
type Request struct {
	EventDate          string              `json:"event_date" validate:"required"`
	EventCategory      EventCategory       `json:"event_category,omitempty" validate:"omitempty,oneof=new_year birthday womens_day professional_holiday company_anniversary founding_day"`
	ClientName         string              `json:"client_name,omitempty"`
	CompanyName        string              `json:"company_name,omitempty"`
	Position           string              `json:"position,omitempty"`
	ClientSegment      ClientSegment       `json:"client_segment,omitempty" validate:"omitempty,oneof=vip new loyal standard"`
	Tone               Tone                `json:"tone,omitempty" validate:"omitempty,oneof=formal friendly creative"`
	Preferences        []string            `json:"preferences,omitempty"`
	InteractionHistory *InteractionHistory `json:"interaction_history,omitempty"`
}

// WithDefaults returns a copy of r with the default segment and tone filled in.
func (r Request) WithDefaults() Request {
	if r.ClientSegment == "" {
		r.ClientSegment = DefaultSegment
	}
	if r.Tone == "" {
		r.Tone = DefaultTone
	}
	return r
}

// EvaluationContext is the slice of a request that the sincerity rubric sees.
type EvaluationContext struct {
	EventCategory EventCategory `json:"event_category,omitempty"`
	ClientSegment ClientSegment `json:"client_segment,omitempty"`
	Tone          Tone          `json:"tone,omitempty"`
}
