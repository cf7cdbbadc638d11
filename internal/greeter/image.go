package greeter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/prompts"
)

// ImageOptions sets the requested image geometry. Zero values take the defaults.
type ImageOptions struct {
	Width  int
	Height int
	Count  int
}

// ImageResult is a rendered greeting image set.
type ImageResult struct {
	Category       greeting.EventCategory
	Prompt         string
	NegativePrompt string
	Images         [][]byte
}

// ImagePrompt composes the image prompt for req and wraps it with the
// language's no-text instructions. It also returns the negative prompt.
func (s *Service) ImagePrompt(req greeting.Request) (prompt, negative string, err error) {
	composed, err := s.imageComposer.Compose(req)
	if err != nil {
		return "", "", err
	}

	wrapKey, negKey := "image-en", "negative-en"
	if s.imageComposer.Language() == greeting.Russian {
		wrapKey, negKey = "image-ru", "negative-ru"
	}
	prompt = prompts.Format(prompts.MustGet(prompts.ImageFile, wrapKey), map[string]string{"Prompt": composed})
	negative = prompts.MustGet(prompts.ImageFile, negKey)
	return prompt, negative, nil
}

// RenderImages composes the prompt and calls the image collaborator once.
// Collaborator errors are returned unchanged.
func (s *Service) RenderImages(ctx context.Context, req greeting.Request, opts ImageOptions) (*ImageResult, error) {
	if s.images == nil {
		return nil, fmt.Errorf("image generation is not configured")
	}

	prompt, negative, err := s.ImagePrompt(req)
	if err != nil {
		return nil, err
	}
	category, _ := greeting.Classify(req.EventDate, req.EventCategory)

	imgReq := llm.ImageRequest{
		Prompt:         prompt,
		NegativePrompt: negative,
		Width:          opts.Width,
		Height:         opts.Height,
		Count:          opts.Count,
	}.WithDefaults()

	images, err := s.images.GenerateImage(ctx, imgReq)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("image generation returned no images")
	}

	s.logger.Info("greeting image generated",
		zap.String("category", string(category)),
		zap.Int("images", len(images)),
		zap.Int("width", imgReq.Width),
		zap.Int("height", imgReq.Height))

	return &ImageResult{
		Category:       category,
		Prompt:         prompt,
		NegativePrompt: negative,
		Images:         images,
	}, nil
}

// GenerateGreetingImage renders images for req and writes them under
// outputPath. A single image is written to outputPath itself; several are
// written as name_1.ext, name_2.ext and so on. The written paths are returned.
func (s *Service) GenerateGreetingImage(ctx context.Context, req greeting.Request, outputPath string, opts ImageOptions) ([]string, error) {
	if strings.TrimSpace(outputPath) == "" {
		return nil, &greeting.ValidationError{Field: "output_path", Reason: "required"}
	}

	result, err := s.RenderImages(ctx, req, opts)
	if err != nil {
		return nil, err
	}
	return SaveImages(outputPath, result.Images)
}

// SaveImages writes images to outputPath, numbering them when there is more than one.
func SaveImages(outputPath string, images [][]byte) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(images))
	for i, img := range images {
		path := outputPath
		if len(images) > 1 {
			ext := filepath.Ext(outputPath)
			path = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(outputPath, ext), i+1, ext)
		}
		if err := os.WriteFile(path, img, 0644); err != nil {
			return paths, fmt.Errorf("failed to write image %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
