package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/types"
)

var (
	classifyDate     string
	classifyCategory string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Print the event category of a date",
	Long: `Classify a DD.MM.YYYY date: 01.01 is new_year, 08.03 is womens_day and any
other date is a birthday. An explicit --category is returned unchanged.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyDate, "date", "d", "", "Event date, DD.MM.YYYY (required)")
	classifyCmd.Flags().StringVarP(&classifyCategory, "category", "c", "", "Explicit event category")
	_ = classifyCmd.MarkFlagRequired("date")

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	req := types.ClassifyRequest{
		EventDate:     classifyDate,
		EventCategory: greeting.EventCategory(classifyCategory),
	}
	if err := types.Validate(req); err != nil {
		return err
	}

	category, err := greeting.Classify(req.EventDate, req.EventCategory)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), types.ClassifyResponse{Category: category})
}
