package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-hangar/pkg/crypto"
)

var sealPasswordCmd = &cobra.Command{
	Use:   "seal-password <database>",
	Short: "Encrypt a database password for encrypted_password",
	Long: `Reads a password from stdin and prints it sealed with HANGAR_CREDENTIALS_KEY.
The sealed value only opens for the database id it was sealed for.`,
	Example: `  printf '%s' "$PGPASSWORD" | hangar seal-password reporting`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		box, err := crypto.NewSecretBox(os.Getenv("HANGAR_CREDENTIALS_KEY"))
		if err != nil {
			return fmt.Errorf("HANGAR_CREDENTIALS_KEY: %w", err)
		}

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password from stdin: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return fmt.Errorf("password is empty")
		}

		sealed, err := box.Seal(args[0], password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sealed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sealPasswordCmd)
}
