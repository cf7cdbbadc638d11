package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/types"
)

var (
	evaluateText         string
	evaluateFile         string
	evaluateMinSincerity float64
	evaluateCategory     string
	evaluateSegment      string
	evaluateTone         string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a greeting with the sincerity rubric",
	Long: `Ask the judge model for sincerity, warmth, personalization and authenticity
scores, print them with the weighted composite and report whether the text
reaches --min-sincerity.

Read the text from --text, from --file, or from stdin with --file -.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateText, "text", "t", "", "Greeting text")
	evaluateCmd.Flags().StringVarP(&evaluateFile, "file", "f", "", "File with the greeting text, - for stdin")
	evaluateCmd.Flags().Float64Var(&evaluateMinSincerity, "min-sincerity", 0, "Composite score threshold in [0, 1] (default from config, 0.6)")
	evaluateCmd.Flags().StringVarP(&evaluateCategory, "category", "c", "", "Event category the greeting was written for")
	evaluateCmd.Flags().StringVar(&evaluateSegment, "segment", "", "Client segment")
	evaluateCmd.Flags().StringVar(&evaluateTone, "tone", "", "Tone")

	rootCmd.AddCommand(evaluateCmd)
}

// evaluationContext returns nil when no context flag is set.
func evaluationContext() *greeting.EvaluationContext {
	if evaluateCategory == "" && evaluateSegment == "" && evaluateTone == "" {
		return nil
	}
	return &greeting.EvaluationContext{
		EventCategory: greeting.EventCategory(evaluateCategory),
		ClientSegment: greeting.ClientSegment(evaluateSegment),
		Tone:          greeting.Tone(evaluateTone),
	}
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	text, err := readTextArg(cmd, evaluateText, evaluateFile)
	if err != nil {
		return err
	}
	threshold := generation.Threshold()
	if cmd.Flags().Changed("min-sincerity") {
		if evaluateMinSincerity < 0 || evaluateMinSincerity > 1 {
			return fmt.Errorf("--min-sincerity must be within [0, 1], got %v", evaluateMinSincerity)
		}
		threshold = evaluateMinSincerity
	}

	ctx := cmd.Context()
	svc, d, err := newService(ctx, serviceOptions{text: true})
	if err != nil {
		return err
	}
	defer d.close()

	ok, score, err := svc.IsTextSincereEnough(ctx, text, threshold, evaluationContext())
	if err != nil {
		return err
	}
	if p := printer(cmd); p != nil {
		p.PrintScore(score, threshold)
	}
	return writeJSON(cmd.OutOrStdout(), types.CheckResponse{Sincere: ok, Score: types.NewScoreResponse(score)})
}
