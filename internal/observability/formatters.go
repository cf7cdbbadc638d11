// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/greeting-personalizer/internal/directory"
	"github.com/jonathan/greeting-personalizer/internal/orchestrator"
	"github.com/jonathan/greeting-personalizer/internal/pipeline"
	"github.com/jonathan/greeting-personalizer/internal/sincerity"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// fit truncates or pads s to exactly width runes.
func fit(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n > width {
		runes := []rune(s)
		return string(runes[:width-3]) + "..."
	}
	return s + strings.Repeat(" ", width-n)
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", fit(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", fit(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// wrap splits text into lines of at most width runes on word boundaries.
func wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		var line []string
		n := 0
		for _, word := range strings.Fields(para) {
			w := utf8.RuneCountInString(word)
			if n > 0 && n+1+w > width {
				lines = append(lines, strings.Join(line, " "))
				line, n = nil, 0
			}
			if n > 0 {
				n++
			}
			line = append(line, word)
			n += w
		}
		lines = append(lines, strings.Join(line, " "))
	}
	return lines
}

func scoreLines(s sincerity.Score) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Sincerity:        %.2f\n", s.Sincerity))
	sb.WriteString(fmt.Sprintf("Warmth:           %.2f\n", s.Warmth))
	sb.WriteString(fmt.Sprintf("Personalization:  %.2f\n", s.Personalization))
	sb.WriteString(fmt.Sprintf("Authenticity:     %.2f\n", s.Authenticity))
	sb.WriteString(fmt.Sprintf("Composite:        %.2f", s.Composite()))
	return sb.String()
}

// PrintScore outputs the rubric metrics and whether they meet threshold.
func (p *Printer) PrintScore(score sincerity.Score, threshold float64) {
	verdict := "below threshold"
	if score.Meets(threshold) {
		verdict = "sincere enough"
	}
	p.printBox("SINCERITY SCORE", fmt.Sprintf("%s\n\nThreshold %.2f: %s", scoreLines(score), threshold, verdict))
}

// PrintOutcome outputs the attempts of a sincerity loop and the chosen text.
func (p *Printer) PrintOutcome(outcome *orchestrator.Outcome) {
	if outcome == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Category:  %s\n", outcome.Category))
	status := "best effort"
	if outcome.Accepted {
		status = "accepted"
	}
	sb.WriteString(fmt.Sprintf("Result:    %s after %d attempt(s)\n", status, outcome.Attempts))
	sb.WriteString(fmt.Sprintf("Composite: %.2f\n\n", outcome.Composite))

	for _, c := range outcome.Candidates {
		if c.Error != "" {
			sb.WriteString(fmt.Sprintf("  #%d  failed: %s\n", c.Attempt, c.Error))
			continue
		}
		mark := ""
		if c.Accepted {
			mark = "  ✓"
		}
		sb.WriteString(fmt.Sprintf("  #%d  %.2f%s\n", c.Attempt, c.Composite, mark))
	}

	sb.WriteString("\n")
	sb.WriteString(strings.Join(wrap(outcome.Text, boxWidth-4), "\n"))

	p.printBox("GREETING TEXT", sb.String())
}

// PrintCelebrations outputs who is celebrating on a date.
func (p *Printer) PrintCelebrations(c *directory.Celebrations) {
	if c == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Date: %s\n", c.Date))

	if len(c.Birthdays) > 0 {
		sb.WriteString(fmt.Sprintf("\nBirthdays (%d):\n", len(c.Birthdays)))
		writeUsers(&sb, c.Birthdays)
	}
	for _, h := range c.Holidays {
		heading := fmt.Sprintf("%s [%s, %s] (%d):", h.Holiday.Name, h.Holiday.Category, h.Holiday.Audience, len(h.Users))
		sb.WriteString("\n" + strings.Join(wrap(heading, boxWidth-4), "\n") + "\n")
		writeUsers(&sb, h.Users)
	}
	if len(c.Birthdays) == 0 && len(c.Holidays) == 0 {
		sb.WriteString("\nNothing to celebrate.")
	}

	p.printBox("CELEBRATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

func writeUsers(sb *strings.Builder, users []directory.User) {
	count := min(len(users), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s (%s)\n", users[i].Name, users[i].UserType))
	}
	if len(users) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(users)-maxItemsToShow))
	}
}

// PrintBatchSummary outputs the result of a batch run.
func (p *Printer) PrintBatchSummary(s *pipeline.Summary) {
	if s == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Date:      %s\n", s.Date))
	sb.WriteString(fmt.Sprintf("Output:    %s\n", s.OutputDir))
	sb.WriteString(fmt.Sprintf("Succeeded: %d\n", s.Succeeded))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", s.Failed))

	shown := 0
	for _, r := range s.Items {
		if !r.Failed() {
			continue
		}
		if shown == 0 {
			sb.WriteString("\nFailures:\n")
		}
		if shown == maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", s.Failed-maxItemsToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("  • %s (%s): %s\n", r.UserName, r.Category, r.Error))
		shown++
	}

	p.printBox("BATCH SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}
