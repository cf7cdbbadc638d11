package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/directory"
	"github.com/jonathan/greeting-personalizer/internal/greeter"
	"github.com/jonathan/greeting-personalizer/internal/pipeline"
)

var (
	todayDate        string
	todayOut         string
	todayConcurrency int
	todayImages      bool
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Greet everyone celebrating on a date",
	Long: `Run the daily batch: find birthday users and holiday recipients in the
directory, write a sincerity-checked greeting for each and optionally draw a card.

Files are written to <out>/<DD.MM.YYYY>/<user-id>-<category>.txt and .png. A failed
greeting is reported in the summary and does not stop the others.`,
	RunE: runToday,
}

func init() {
	todayCmd.Flags().StringVarP(&todayDate, "date", "d", "", "Date to process, DD.MM.YYYY (default today)")
	todayCmd.Flags().StringVarP(&todayOut, "out", "o", "", "Output directory (default from config, out)")
	todayCmd.Flags().IntVar(&todayConcurrency, "concurrency", 0, "Greetings generated in parallel (default from config, 4)")
	todayCmd.Flags().BoolVar(&todayImages, "images", false, "Also draw a greeting card for each item")

	rootCmd.AddCommand(todayCmd)
}

// parseDate reads a DD.MM.YYYY flag value in local time; empty means now.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.ParseInLocation("02.01.2006", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected DD.MM.YYYY", value)
	}
	return t, nil
}

func runToday(cmd *cobra.Command, _ []string) error {
	date, err := parseDate(todayDate)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Date:        date,
		OutputDir:   generation.OutputDir,
		Concurrency: generation.Concurrency,
		Text: greeter.TextOptions{
			EvaluateSincerity: generation.Evaluate(),
			MinSincerity:      generation.Threshold(),
			MaxRetries:        generation.Retries(),
		},
		WithImages: todayImages,
		Image: greeter.ImageOptions{
			Width:  generation.ImageWidth,
			Height: generation.ImageHeight,
			Count:  1,
		},
		Logger: logger,
		OnProgress: func(e pipeline.ProgressEvent) {
			logger.Info(e.Message, zap.String("step", e.Step), zap.String("item", e.Item))
		},
	}
	if todayOut != "" {
		opts.OutputDir = todayOut
	}
	if todayConcurrency > 0 {
		opts.Concurrency = todayConcurrency
	}

	ctx := cmd.Context()
	store, err := directory.Open(ctx, appEnv.DirectoryPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, d, err := newService(ctx, serviceOptions{text: true, images: todayImages, history: true})
	if err != nil {
		return err
	}
	defer d.close()

	summary, err := pipeline.Run(ctx, store, svc, opts)
	if err != nil {
		return err
	}
	if p := printer(cmd); p != nil {
		p.PrintBatchSummary(summary)
	}
	if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d greetings failed", summary.Failed, len(summary.Items))
	}
	return nil
}
