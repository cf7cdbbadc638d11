package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/greeting-personalizer/internal/greeter"
)

var (
	imageRequest requestFlags
	imageOut     string
	imageWidth   int
	imageHeight  int
	imageCount   int
)

var generateImageCmd = &cobra.Command{
	Use:   "generate-image",
	Short: "Draw a greeting card image",
	Long: `Render a greeting image for the request and save it as PNG.

With --count above 1 the files are numbered: card_1.png, card_2.png, ...`,
	RunE: runGenerateImage,
}

func init() {
	imageRequest.register(generateImageCmd)
	generateImageCmd.Flags().StringVarP(&imageOut, "out", "o", "", "Output image path (required)")
	generateImageCmd.Flags().IntVar(&imageWidth, "width", 0, "Image width in pixels (default from config, 1024)")
	generateImageCmd.Flags().IntVar(&imageHeight, "height", 0, "Image height in pixels (default from config, 1024)")
	generateImageCmd.Flags().IntVar(&imageCount, "count", 0, "Number of images (default from config, 1)")
	_ = generateImageCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(generateImageCmd)
}

type imageOutput struct {
	Files  []string `json:"files"`
	Prompt string   `json:"prompt"`
}

func runGenerateImage(cmd *cobra.Command, _ []string) error {
	req, err := imageRequest.load(cmd)
	if err != nil {
		return err
	}

	opts := greeter.ImageOptions{
		Width:  generation.ImageWidth,
		Height: generation.ImageHeight,
		Count:  generation.NumImages,
	}
	if imageWidth > 0 {
		opts.Width = imageWidth
	}
	if imageHeight > 0 {
		opts.Height = imageHeight
	}
	if imageCount > 0 {
		opts.Count = imageCount
	}

	ctx := cmd.Context()
	svc, d, err := newService(ctx, serviceOptions{images: true})
	if err != nil {
		return err
	}
	defer d.close()

	prompt, _, err := svc.ImagePrompt(req)
	if err != nil {
		return err
	}
	files, err := svc.GenerateGreetingImage(ctx, req, imageOut, opts)
	if err != nil {
		return err
	}
	for i, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			files[i] = abs
		}
	}
	if verbose && len(files) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d image(s) to %s\n", len(files), filepath.Dir(files[0]))
	}
	return writeJSON(cmd.OutOrStdout(), imageOutput{Files: files, Prompt: prompt})
}
