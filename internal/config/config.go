// Package config provides environment and generation-defaults configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Built-in generation defaults.
const (
	DefaultMinSincerity = 0.6
	DefaultMaxRetries   = 2
	DefaultImageSize    = 1024
	DefaultNumImages    = 1
	DefaultConcurrency  = 4
	DefaultOutputDir    = "out"
)

// Generation holds tunables for text and image generation. It can be loaded
// from a JSON file; pointer fields distinguish "unset" from a real zero.
type Generation struct {
	MinSincerity      *float64 `json:"min_sincerity,omitempty"`
	MaxRetries        *int     `json:"max_retries,omitempty"`
	EvaluateSincerity *bool    `json:"evaluate_sincerity,omitempty"`

	ImageWidth    int    `json:"image_width,omitempty"`
	ImageHeight   int    `json:"image_height,omitempty"`
	NumImages     int    `json:"num_images,omitempty"`
	ImageLanguage string `json:"image_language,omitempty"` // "en" or "ru"

	Concurrency int    `json:"concurrency,omitempty"` // batch workers
	OutputDir   string `json:"output_dir,omitempty"`
}

// DefaultGeneration returns the built-in defaults.
func DefaultGeneration() Generation {
	minSincerity := DefaultMinSincerity
	maxRetries := DefaultMaxRetries
	evaluate := true
	return Generation{
		MinSincerity:      &minSincerity,
		MaxRetries:        &maxRetries,
		EvaluateSincerity: &evaluate,
		ImageWidth:        DefaultImageSize,
		ImageHeight:       DefaultImageSize,
		NumImages:         DefaultNumImages,
		Concurrency:       DefaultConcurrency,
		OutputDir:         DefaultOutputDir,
	}
}

// LoadGeneration loads generation settings from a JSON file.
func LoadGeneration(path string) (*Generation, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var g Generation
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &g, nil
}

// Validate checks value ranges. Unset fields are not checked.
func (g *Generation) Validate() error {
	if g.MinSincerity != nil && (*g.MinSincerity < 0 || *g.MinSincerity > 1) {
		return fmt.Errorf("config error: 'min_sincerity' must be within [0, 1]")
	}
	if g.MaxRetries != nil && *g.MaxRetries < 0 {
		return fmt.Errorf("config error: 'max_retries' must be non-negative")
	}
	if g.ImageWidth < 0 || g.ImageHeight < 0 {
		return fmt.Errorf("config error: image size must be positive")
	}
	if g.NumImages < 0 {
		return fmt.Errorf("config error: 'num_images' must be non-negative")
	}
	if g.Concurrency < 0 {
		return fmt.Errorf("config error: 'concurrency' must be non-negative")
	}
	switch g.ImageLanguage {
	case "", "en", "ru":
	default:
		return fmt.Errorf("config error: 'image_language' must be \"en\" or \"ru\", got %q", g.ImageLanguage)
	}
	return nil
}

// MergeWithDefaults returns a copy of g with unset fields taken from defaults.
func (g *Generation) MergeWithDefaults(defaults Generation) Generation {
	result := *g

	if result.MinSincerity == nil {
		result.MinSincerity = defaults.MinSincerity
	}
	if result.MaxRetries == nil {
		result.MaxRetries = defaults.MaxRetries
	}
	if result.EvaluateSincerity == nil {
		result.EvaluateSincerity = defaults.EvaluateSincerity
	}

	if result.ImageWidth == 0 {
		result.ImageWidth = defaults.ImageWidth
	}
	if result.ImageHeight == 0 {
		result.ImageHeight = defaults.ImageHeight
	}
	if result.NumImages == 0 {
		result.NumImages = defaults.NumImages
	}
	if result.ImageLanguage == "" {
		result.ImageLanguage = defaults.ImageLanguage
	}
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}
	return result
}

// Threshold returns the minimum composite score, or the built-in default.
func (g Generation) Threshold() float64 {
	if g.MinSincerity == nil {
		return DefaultMinSincerity
	}
	return *g.MinSincerity
}

// Retries returns the number of additional attempts, or the built-in default.
func (g Generation) Retries() int {
	if g.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *g.MaxRetries
}

// Evaluate reports whether text generation runs the sincerity loop.
func (g Generation) Evaluate() bool {
	return g.EvaluateSincerity == nil || *g.EvaluateSincerity
}
