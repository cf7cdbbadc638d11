package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/greeting-personalizer/internal/directory"
	"github.com/jonathan/greeting-personalizer/internal/schemas"
)

const usersSchema = "schemas/users.schema.json"

var (
	directoryPath    string
	importFile       string
	celebrationsDate string
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Manage the client and employee directory",
	Long:  `Create, fill and query the SQLite directory of users and holidays used by the daily batch.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(cmd, args); err != nil {
			return err
		}
		if directoryPath == "" {
			directoryPath = appEnv.DirectoryPath
		}
		return nil
	},
}

var directoryInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the directory and seed the default bank holidays",
	RunE:  runDirectoryInit,
}

var directoryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import users from a JSON array",
	Long: `Import users from a JSON file holding an array of users. The file is checked
against schemas/users.schema.json when the schema can be found. Either every
user is imported or none is.`,
	RunE: runDirectoryImport,
}

var directoryUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List every user",
	RunE:  runDirectoryUsers,
}

var directoryCelebrationsCmd = &cobra.Command{
	Use:   "celebrations",
	Short: "List birthdays and holiday recipients for a date",
	RunE:  runDirectoryCelebrations,
}

func init() {
	directoryCmd.PersistentFlags().StringVar(&directoryPath, "db", "", "SQLite database path (defaults to DIRECTORY_PATH)")

	directoryImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "Users JSON file (required)")
	_ = directoryImportCmd.MarkFlagRequired("file")

	directoryCelebrationsCmd.Flags().StringVarP(&celebrationsDate, "date", "d", "", "Date, DD.MM.YYYY (default today)")

	directoryCmd.AddCommand(directoryInitCmd, directoryImportCmd, directoryUsersCmd, directoryCelebrationsCmd)
	rootCmd.AddCommand(directoryCmd)
}

func openDirectory(cmd *cobra.Command) (*directory.Store, error) {
	return directory.Open(cmd.Context(), directoryPath, logger)
}

func runDirectoryInit(cmd *cobra.Command, _ []string) error {
	store, err := openDirectory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Seed(cmd.Context()); err != nil {
		return err
	}
	holidays, err := store.ListHolidays(cmd.Context())
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{"path": directoryPath, "holidays": len(holidays)})
}

// readUsersFile decodes a users array, checking it against the users schema
// first when the schema file can be found.
func readUsersFile(path string) ([]directory.User, error) {
	if schemaPath := schemas.ResolveSchemaPath(usersSchema); schemaPath != "" {
		if err := schemas.ValidateJSON(schemaPath, path); err != nil {
			return nil, fmt.Errorf("invalid users file %s: %w", path, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	var users []directory.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users JSON: %w", err)
	}
	return users, nil
}

func runDirectoryImport(cmd *cobra.Command, _ []string) error {
	users, err := readUsersFile(importFile)
	if err != nil {
		return err
	}

	store, err := openDirectory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.ImportUsers(cmd.Context(), users)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), map[string]int{"imported": n})
}

func runDirectoryUsers(cmd *cobra.Command, _ []string) error {
	store, err := openDirectory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	if users == nil {
		users = []directory.User{}
	}
	return writeJSON(cmd.OutOrStdout(), users)
}

func runDirectoryCelebrations(cmd *cobra.Command, _ []string) error {
	date, err := parseDate(celebrationsDate)
	if err != nil {
		return err
	}

	store, err := openDirectory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := store.Celebrations(cmd.Context(), date)
	if err != nil {
		return err
	}
	if p := printer(cmd); p != nil {
		p.PrintCelebrations(c)
	}
	return writeJSON(cmd.OutOrStdout(), c)
}
