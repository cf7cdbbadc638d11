package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var hashPasswordCost int

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for AUTH_ADMIN_PASSWORD_HASH",
	Long: `Hash the admin password with bcrypt and AUTH_PASSWORD_PEPPER. The password is
taken from the argument or, when omitted, from the first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashPassword,
}

func init() {
	hashPasswordCmd.Flags().IntVar(&hashPasswordCost, "cost", 0, "bcrypt cost 10-14 (defaults to AUTH_BCRYPT_COST)")
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password from stdin: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return fmt.Errorf("password is empty")
	}

	auth := appEnv.Auth
	if hashPasswordCost > 0 {
		auth.BcryptCost = hashPasswordCost
	}
	pw, err := auth.Password()
	if err != nil {
		return err
	}
	hash, err := pw.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return err
}
