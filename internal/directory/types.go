// Package directory is the SQLite store of clients, employees and the bank's
// holiday calendar. It answers "who is celebrating on this date".
package directory

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
)

// UserType separates bank clients from employees.
type UserType string

const (
	UserClient   UserType = "client"
	UserEmployee UserType = "employee"
)

// Audience selects who receives a holiday greeting.
type Audience string

const (
	AudienceAll       Audience = "all"
	AudienceMen       Audience = "men"
	AudienceWomen     Audience = "women"
	AudienceEmployees Audience = "employees"
	AudienceClients   Audience = "clients"
	AudienceIT        Audience = "it"
)

// Valid reports whether a is a known audience.
func (a Audience) Valid() bool {
	switch a {
	case AudienceAll, AudienceMen, AudienceWomen, AudienceEmployees, AudienceClients, AudienceIT:
		return true
	}
	return false
}

// User is one person in the directory. BirthDate is YYYY-MM-DD.
type User struct {
	ID             int64                  `json:"id"`
	Name           string                 `json:"name"`
	UserType       UserType               `json:"user_type"`
	Gender         string                 `json:"gender,omitempty"`
	BirthDate      string                 `json:"birth_date,omitempty"`
	Company        string                 `json:"company,omitempty"`
	Position       string                 `json:"position,omitempty"`
	Segment        greeting.ClientSegment `json:"segment,omitempty"`
	Tone           greeting.Tone          `json:"tone,omitempty"`
	Interests      []string               `json:"interests,omitempty"`
	TelegramChatID string                 `json:"telegram_chat_id,omitempty"`
	ReferralCode   string                 `json:"referral_code,omitempty"`
}

// Activated reports whether the user can receive holiday greetings.
func (u User) Activated() bool {
	return strings.TrimSpace(u.TelegramChatID) != ""
}

// Holiday is a yearly date in the bank's calendar. DateFixed is MM-DD.
type Holiday struct {
	ID          int64                  `json:"id"`
	Name        string                 `json:"holiday_name"`
	DateFixed   string                 `json:"date_fixed"`
	Audience    Audience               `json:"audience"`
	Category    greeting.EventCategory `json:"category"`
	Description string                 `json:"description,omitempty"`
}

// HolidayRecipients pairs a holiday with the users who should be greeted.
type HolidayRecipients struct {
	Holiday Holiday `json:"holiday"`
	Users   []User  `json:"users"`
}

// Celebrations is everything to be greeted on one date.
type Celebrations struct {
	Date      string              `json:"date"` // DD.MM.YYYY
	Birthdays []User              `json:"birthdays"`
	Holidays  []HolidayRecipients `json:"holidays"`
}

// EventDate formats t the way greeting requests expect it.
func EventDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// Request builds a greeting request for u on date. An empty category lets
// the classifier decide from the date.
func (u User) Request(date string, category greeting.EventCategory) greeting.Request {
	return greeting.Request{
		EventDate:     date,
		EventCategory: category,
		ClientName:    u.Name,
		CompanyName:   u.Company,
		Position:      u.Position,
		ClientSegment: u.Segment,
		Tone:          u.Tone,
		Preferences:   u.Interests,
	}
}

func joinInterests(interests []string) string {
	cleaned := make([]string, 0, len(interests))
	for _, i := range interests {
		if i = strings.TrimSpace(i); i != "" {
			cleaned = append(cleaned, i)
		}
	}
	return strings.Join(cleaned, ", ")
}

func splitInterests(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// monthDay validates day and month and returns them zero padded.
func monthDay(day, month int) (string, string, error) {
	if month < 1 || month > 12 {
		return "", "", fmt.Errorf("month out of range: %d", month)
	}
	if day < 1 || day > 31 {
		return "", "", fmt.Errorf("day out of range: %d", day)
	}
	return fmt.Sprintf("%02d", day), fmt.Sprintf("%02d", month), nil
}
