// Package pipeline runs the daily batch: it collects everyone celebrating on
// a date and generates their greetings concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/greeting-personalizer/internal/directory"
	"github.com/jonathan/greeting-personalizer/internal/greeter"
	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/logging"
	"github.com/jonathan/greeting-personalizer/internal/orchestrator"
)

// Progress steps
const (
	StepPlanned = "planned"
	StepText    = "text"
	StepImage   = "image"
	StepFailed  = "failed"
	StepDone    = "done"
)

// DefaultConcurrency bounds parallel greetings when Options leaves it unset.
const DefaultConcurrency = 4

// ProgressEvent represents a progress update during a batch run
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
	Item     string `json:"item,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when batch progress occurs. Calls are serialized.
type ProgressCallback func(event ProgressEvent)

// Source lists who celebrates on a date. *directory.Store implements it.
type Source interface {
	Celebrations(ctx context.Context, date time.Time) (*directory.Celebrations, error)
}

// Greeter produces greeting text and images. *greeter.Service implements it.
type Greeter interface {
	GenerateGreetingText(ctx context.Context, req greeting.Request, opts greeter.TextOptions) (string, error)
	GenerateGreetingTextOutcome(ctx context.Context, req greeting.Request, minSincerity float64, maxRetries int) (*orchestrator.Outcome, error)
	GenerateGreetingImage(ctx context.Context, req greeting.Request, outputPath string, opts greeter.ImageOptions) ([]string, error)
}

// Options holds configuration for a batch run
type Options struct {
	Date        time.Time
	OutputDir   string
	Concurrency int
	Text        greeter.TextOptions
	WithImages  bool
	Image       greeter.ImageOptions
	OnProgress  ProgressCallback
	Logger      *zap.Logger
}

// Item is one greeting to produce.
type Item struct {
	User     directory.User         `json:"user"`
	Category greeting.EventCategory `json:"event_category"`
	Holiday  string                 `json:"holiday,omitempty"`
	Request  greeting.Request       `json:"request"`
}

// Key names the item's output files.
func (it Item) Key() string {
	return fmt.Sprintf("%d-%s", it.User.ID, it.Category)
}

// ItemResult is what happened to one Item.
type ItemResult struct {
	UserID     int64                  `json:"user_id"`
	UserName   string                 `json:"user_name"`
	Category   greeting.EventCategory `json:"event_category"`
	Holiday    string                 `json:"holiday,omitempty"`
	TextPath   string                 `json:"text_path,omitempty"`
	ImagePaths []string               `json:"image_paths,omitempty"`
	Composite  *float64               `json:"composite,omitempty"`
	Accepted   bool                   `json:"accepted"`
	Attempts   int                    `json:"attempts,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Failed reports whether any part of the item failed.
func (r ItemResult) Failed() bool {
	return r.Error != ""
}

// Summary is the result of a batch run.
type Summary struct {
	Date      string       `json:"date"`
	OutputDir string       `json:"output_dir"`
	Items     []ItemResult `json:"items"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Plan turns celebrations into greeting items: one per birthday user and
// one per holiday recipient. A user is greeted at most once per category.
func Plan(c *directory.Celebrations) []Item {
	if c == nil {
		return nil
	}

	seen := map[string]bool{}
	var items []Item
	add := func(u directory.User, category greeting.EventCategory, holiday string) {
		it := Item{User: u, Category: category, Holiday: holiday, Request: u.Request(c.Date, category)}
		if seen[it.Key()] {
			return
		}
		seen[it.Key()] = true
		items = append(items, it)
	}

	for _, u := range c.Birthdays {
		add(u, greeting.Birthday, "")
	}
	for _, h := range c.Holidays {
		for _, u := range h.Users {
			add(u, h.Holiday.Category, h.Holiday.Name)
		}
	}
	return items
}

// Run generates greetings for everyone celebrating on opts.Date and writes
// them to <OutputDir>/<DD.MM.YYYY>/. A failed item is recorded in the
// summary and does not stop the others. The returned error is reserved for
// failures that affect the whole batch.
func Run(ctx context.Context, src Source, g Greeter, opts Options) (*Summary, error) {
	logger := logging.OrNop(opts.Logger)
	if opts.Date.IsZero() {
		opts.Date = time.Now()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "out"
	}

	var progressMu sync.Mutex
	emit := func(ev ProgressEvent) {
		if opts.OnProgress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		opts.OnProgress(ev)
	}

	celebrations, err := src.Celebrations(ctx, opts.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load celebrations: %w", err)
	}
	items := Plan(celebrations)

	dir := filepath.Join(opts.OutputDir, celebrations.Date)
	summary := &Summary{Date: celebrations.Date, OutputDir: dir, Items: make([]ItemResult, len(items))}
	emit(ProgressEvent{
		Step:    StepPlanned,
		Message: fmt.Sprintf("%d greetings planned for %s", len(items), celebrations.Date),
		Content: items,
	})
	if len(items) == 0 {
		return summary, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Concurrency)
	for i, item := range items {
		eg.Go(func() error {
			res := runItem(egCtx, g, item, dir, opts, emit)
			if res.Failed() {
				logger.Warn("greeting failed",
					zap.Int64("user_id", item.User.ID),
					zap.String("category", string(item.Category)),
					zap.String("error", res.Error))
			}
			summary.Items[i] = res
			return nil
		})
	}
	_ = eg.Wait()

	for _, r := range summary.Items {
		if r.Failed() {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	emit(ProgressEvent{
		Step:    StepDone,
		Message: fmt.Sprintf("%d succeeded, %d failed", summary.Succeeded, summary.Failed),
		Content: summary,
	})
	logger.Info("batch finished",
		zap.String("date", summary.Date),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func runItem(ctx context.Context, g Greeter, item Item, dir string, opts Options, emit func(ProgressEvent)) ItemResult {
	res := ItemResult{
		UserID:   item.User.ID,
		UserName: item.User.Name,
		Category: item.Category,
		Holiday:  item.Holiday,
	}
	base := filepath.Join(dir, item.Key())
	var errs []error

	text, err := generateText(ctx, g, item.Request, opts.Text, &res)
	if err == nil {
		path := base + ".txt"
		if werr := os.WriteFile(path, []byte(text+"\n"), 0644); werr != nil {
			err = fmt.Errorf("failed to write %s: %w", path, werr)
		} else {
			res.TextPath = path
		}
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("text: %w", err))
	} else {
		emit(ProgressEvent{Step: StepText, Category: string(item.Category), Item: item.Key(),
			Message: fmt.Sprintf("greeting text for %s written", item.User.Name)})
	}

	if opts.WithImages {
		paths, err := g.GenerateGreetingImage(ctx, item.Request, base+".png", opts.Image)
		if err != nil {
			errs = append(errs, fmt.Errorf("image: %w", err))
		} else {
			res.ImagePaths = paths
			emit(ProgressEvent{Step: StepImage, Category: string(item.Category), Item: item.Key(),
				Message: fmt.Sprintf("%d image(s) for %s written", len(paths), item.User.Name)})
		}
	}

	if err := errors.Join(errs...); err != nil {
		res.Error = err.Error()
		emit(ProgressEvent{Step: StepFailed, Category: string(item.Category), Item: item.Key(), Message: res.Error})
	}
	return res
}

func generateText(ctx context.Context, g Greeter, req greeting.Request, opts greeter.TextOptions, res *ItemResult) (string, error) {
	if !opts.EvaluateSincerity {
		return g.GenerateGreetingText(ctx, req, opts)
	}
	outcome, err := g.GenerateGreetingTextOutcome(ctx, req, opts.MinSincerity, opts.MaxRetries)
	if err != nil {
		return "", err
	}
	composite := outcome.Composite
	res.Composite = &composite
	res.Accepted = outcome.Accepted
	res.Attempts = outcome.Attempts
	return outcome.Text, nil
}
