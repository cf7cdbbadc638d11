package llm

import "context"

// ImageRequest describes one image generation call.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Count          int
}

// Default image parameters.
const (
	DefaultImageWidth  = 1024
	DefaultImageHeight = 1024
	DefaultImageCount  = 1
)

// WithDefaults fills zero dimensions and count.
func (r ImageRequest) WithDefaults() ImageRequest {
	if r.Width <= 0 {
		r.Width = DefaultImageWidth
	}
	if r.Height <= 0 {
		r.Height = DefaultImageHeight
	}
	if r.Count <= 0 {
		r.Count = DefaultImageCount
	}
	return r
}

// ImageClient generates images from a prompt. Each returned slice is one
// encoded image (PNG or JPEG, as produced by the provider).
type ImageClient interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([][]byte, error)
}
