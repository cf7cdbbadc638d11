package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/schemas"
)

const requestSchema = "schemas/greeting_request.schema.json"

// requestFlags holds the GreetingRequest fields settable from the command
// line. Each command gets its own copy.
type requestFlags struct {
	file        string
	date        string
	category    string
	name        string
	company     string
	position    string
	segment     string
	tone        string
	preferences []string
	lastContact string
	topic       string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "request", "r", "", "Path to a GreetingRequest JSON file (flags override its fields)")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "Event date, DD.MM.YYYY")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Event category (new_year, birthday, womens_day, professional_holiday, company_anniversary, founding_day)")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Client name")
	cmd.Flags().StringVar(&f.company, "company", "", "Company name")
	cmd.Flags().StringVar(&f.position, "position", "", "Client position")
	cmd.Flags().StringVar(&f.segment, "segment", "", "Client segment: vip, new, loyal, standard")
	cmd.Flags().StringVar(&f.tone, "tone", "", "Tone: formal, friendly, creative")
	cmd.Flags().StringSliceVar(&f.preferences, "preferences", nil, "Comma-separated client interests")
	cmd.Flags().StringVar(&f.lastContact, "last-contact", "", "Date of the last interaction")
	cmd.Flags().StringVar(&f.topic, "topic", "", "Topic of the last interaction")
}

// load builds the request from --request and the explicitly set flags, then
// validates it.
func (f *requestFlags) load(cmd *cobra.Command) (greeting.Request, error) {
	var req greeting.Request
	if f.file != "" {
		r, err := readRequestFile(f.file)
		if err != nil {
			return greeting.Request{}, err
		}
		req = r
	}

	changed := cmd.Flags().Changed
	if changed("date") {
		req.EventDate = f.date
	}
	if changed("category") {
		req.EventCategory = greeting.EventCategory(f.category)
	}
	if changed("name") {
		req.ClientName = f.name
	}
	if changed("company") {
		req.CompanyName = f.company
	}
	if changed("position") {
		req.Position = f.position
	}
	if changed("segment") {
		req.ClientSegment = greeting.ClientSegment(f.segment)
	}
	if changed("tone") {
		req.Tone = greeting.Tone(f.tone)
	}
	if changed("preferences") {
		req.Preferences = f.preferences
	}
	if changed("last-contact") || changed("topic") {
		if req.InteractionHistory == nil {
			req.InteractionHistory = &greeting.InteractionHistory{}
		}
		if changed("last-contact") {
			req.InteractionHistory.LastContact = f.lastContact
		}
		if changed("topic") {
			req.InteractionHistory.Topic = f.topic
		}
	}

	if req.EventDate == "" {
		return greeting.Request{}, fmt.Errorf("--date or a --request file with event_date is required")
	}
	if err := req.Validate(); err != nil {
		return greeting.Request{}, err
	}
	return req, nil
}

// readRequestFile decodes a GreetingRequest, checking it against the request
// schema first when the schema file can be found.
func readRequestFile(path string) (greeting.Request, error) {
	if schemaPath := schemas.ResolveSchemaPath(requestSchema); schemaPath != "" {
		if err := schemas.ValidateJSON(schemaPath, path); err != nil {
			return greeting.Request{}, fmt.Errorf("invalid request file %s: %w", path, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return greeting.Request{}, fmt.Errorf("failed to read request file: %w", err)
	}
	var req greeting.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return greeting.Request{}, fmt.Errorf("failed to parse request JSON: %w", err)
	}
	return req, nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// readTextArg returns the text to evaluate: the --text flag, a file, or stdin
// when the value is "-".
func readTextArg(cmd *cobra.Command, text, file string) (string, error) {
	switch {
	case text != "" && file != "":
		return "", fmt.Errorf("--text and --file are mutually exclusive")
	case text != "":
		return text, nil
	case file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read text file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("--text or --file is required")
	}
}
