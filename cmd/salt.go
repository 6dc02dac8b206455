package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/russellromney/cipherdb/internal/key"
)

var saltCmd = &cobra.Command{
	Use:   "salt",
	Short: "Generate a random salt for key derivation",
	Long: `Generate a random salt to use with --derive-salt.

Keep the salt next to the database; the same passphrase and salt always
derive the same raw key.

Example:
  cipherdb open app.db --derive-salt $(cipherdb salt)`,
	Args: cobra.NoArgs,
	RunE: runSalt,
}

func init() {
	rootCmd.AddCommand(saltCmd)
}

func runSalt(cmd *cobra.Command, args []string) error {
	salt, err := key.GenerateSalt()
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(salt))
	return nil
}
