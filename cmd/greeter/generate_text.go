package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/greeting-personalizer/internal/greeter"
	"github.com/jonathan/greeting-personalizer/internal/types"
)

var (
	textRequest      requestFlags
	textMinSincerity float64
	textMaxRetries   int
	textNoEvaluate   bool
)

var generateTextCmd = &cobra.Command{
	Use:   "generate-text",
	Short: "Write a personalized greeting",
	Long: `Generate greeting text and check it with the sincerity judge, regenerating up
to --max-retries more times while the composite score stays below
--min-sincerity. The best candidate is returned even when none passes.

With --no-evaluate a single generation call is made.`,
	RunE: runGenerateText,
}

func init() {
	textRequest.register(generateTextCmd)
	generateTextCmd.Flags().Float64Var(&textMinSincerity, "min-sincerity", 0, "Composite score threshold in [0, 1] (default from config, 0.6)")
	generateTextCmd.Flags().IntVar(&textMaxRetries, "max-retries", 0, "Regeneration attempts after the first (default from config, 2)")
	generateTextCmd.Flags().BoolVar(&textNoEvaluate, "no-evaluate", false, "Skip the sincerity check")

	rootCmd.AddCommand(generateTextCmd)
}

// textOptions merges the generation defaults with explicitly set flags.
func textOptions(cmd *cobra.Command) (greeter.TextOptions, error) {
	opts := greeter.TextOptions{
		EvaluateSincerity: generation.Evaluate(),
		MinSincerity:      generation.Threshold(),
		MaxRetries:        generation.Retries(),
	}
	if cmd.Flags().Changed("min-sincerity") {
		if textMinSincerity < 0 || textMinSincerity > 1 {
			return opts, fmt.Errorf("--min-sincerity must be within [0, 1], got %v", textMinSincerity)
		}
		opts.MinSincerity = textMinSincerity
	}
	if cmd.Flags().Changed("max-retries") {
		if textMaxRetries < 0 {
			return opts, fmt.Errorf("--max-retries must be non-negative, got %d", textMaxRetries)
		}
		opts.MaxRetries = textMaxRetries
	}
	if textNoEvaluate {
		opts.EvaluateSincerity = false
	}
	return opts, nil
}

func runGenerateText(cmd *cobra.Command, _ []string) error {
	req, err := textRequest.load(cmd)
	if err != nil {
		return err
	}
	opts, err := textOptions(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, d, err := newService(ctx, serviceOptions{text: true, history: true})
	if err != nil {
		return err
	}
	defer d.close()

	if !opts.EvaluateSincerity {
		text, err := svc.GenerateGreetingText(ctx, req, opts)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), types.TextResponse{Text: text})
	}

	outcome, err := svc.GenerateGreetingTextOutcome(ctx, req, opts.MinSincerity, opts.MaxRetries)
	if err != nil {
		return err
	}
	if p := printer(cmd); p != nil {
		p.PrintOutcome(outcome)
	}
	return writeJSON(cmd.OutOrStdout(), types.TextResponse{Text: outcome.Text, Outcome: outcome})
}
