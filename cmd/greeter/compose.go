package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/greeting-personalizer/internal/greeter"
	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/types"
)

var (
	composeRequest  requestFlags
	composeLanguage string
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Print the fragment prompt for a greeting request",
	Long: `Compose the generation prompt for a request without calling any model.

Russian prompts feed text generation; English prompts feed Kandinsky images.`,
	RunE: runCompose,
}

func init() {
	composeRequest.register(composeCmd)
	composeCmd.Flags().StringVarP(&composeLanguage, "language", "l", string(greeting.English), "Prompt language: en or ru")

	rootCmd.AddCommand(composeCmd)
}

func runCompose(cmd *cobra.Command, _ []string) error {
	lang := greeting.Language(composeLanguage)
	if lang != greeting.English && lang != greeting.Russian {
		return fmt.Errorf("--language must be en or ru, got %q", composeLanguage)
	}

	req, err := composeRequest.load(cmd)
	if err != nil {
		return err
	}

	// Compose is pure, so no collaborators are opened.
	svc := greeter.NewService(nil, nil, greeter.Options{ImageLanguage: imageLanguage(generation, appEnv.ImageProvider), Logger: logger})
	prompt, err := svc.Compose(req, lang)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), types.ComposeResponse{Prompt: prompt, Language: lang})
}
