// Package prompts holds the greeting, sincerity and image prompt templates.
// Templates live in JSON files embedded at compile time and use {{.Key}}
// placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Template files shipped with the binary.
const (
	GreetingFile  = "greeting.json"
	SincerityFile = "sincerity.json"
	ImageFile     = "image.json"
)

//go:embed *.json
var templateFS embed.FS

var (
	loaded   = make(map[string]map[string]string)
	loadedMu sync.RWMutex
)

// Get returns the template stored under key in file.
func Get(file, key string) (string, error) {
	templates, err := load(file)
	if err != nil {
		return "", err
	}

	tmpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return tmpl, nil
}

// MustGet is Get for templates that must exist; it panics otherwise.
func MustGet(file, key string) string {
	tmpl, err := Get(file, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return tmpl
}

// Format substitutes {{.Key}} placeholders. Unknown placeholders are left as is.
func Format(tmpl string, data map[string]string) string {
	if len(data) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Render loads a template and formats it in one step.
func Render(file, key string, data map[string]string) (string, error) {
	tmpl, err := Get(file, key)
	if err != nil {
		return "", err
	}
	return Format(tmpl, data), nil
}

// Keys lists the template keys in file, sorted.
func Keys(file string) ([]string, error) {
	templates, err := load(file)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(templates))
	for key := range templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// ClearCache drops parsed templates so the next Get re-reads them.
func ClearCache() {
	loadedMu.Lock()
	loaded = make(map[string]map[string]string)
	loadedMu.Unlock()
}

func load(file string) (map[string]string, error) {
	loadedMu.RLock()
	templates, ok := loaded[file]
	loadedMu.RUnlock()
	if ok {
		return templates, nil
	}

	data, err := templateFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", file, err)
	}
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", file, err)
	}

	loadedMu.Lock()
	loaded[file] = templates
	loadedMu.Unlock()
	return templates, nil
}
