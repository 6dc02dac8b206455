package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open <db>",
	Short: "Verify that a database opens",
	Long: `Open a database with its configured encryption and close it again.

If the database is still encrypted with a scheme listed under migrations,
it is re-encrypted with the current scheme.

Examples:
  cipherdb open app.db                 # Uses keychain if enabled, otherwise prompts
  cipherdb open app.db --key secret    # Non-interactive`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

var openKey keyFlags

func init() {
	rootCmd.AddCommand(openCmd)
	openKey.register(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	factory, err := newFactory(args[0])
	if err != nil {
		return err
	}
	k, err := openKey.resolve(factory, "Passphrase")
	if err != nil {
		return err
	}
	defer k.Wipe()

	conn, err := factory.Create(cmd.Context(), k)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Opened %s\n", factory.Path())
	fmt.Printf("Encryption: %s\n", factory.Encryption())
	fmt.Printf("Connection: %s\n", conn.ID())
	return nil
}
