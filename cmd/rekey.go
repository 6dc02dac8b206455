package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/russellromney/cipherdb/internal/key"
)

var rekeyCmd = &cobra.Command{
	Use:   "rekey <db>",
	Short: "Change the key of a database",
	Long: `Re-encrypt a database with a new key using its configured scheme.

The current key is taken from --key, --raw-key, the keychain or a prompt.
The new key is taken from --new-key, --new-raw-key or a prompt. If the
keychain holds the old key it is replaced.

Examples:
  cipherdb rekey app.db
  cipherdb rekey app.db --key old --new-key new`,
	Args: cobra.ExactArgs(1),
	RunE: runRekey,
}

var (
	rekeyKey       keyFlags
	rekeyNewKey    string
	rekeyNewRawKey string
)

func init() {
	rootCmd.AddCommand(rekeyCmd)
	rekeyKey.register(rekeyCmd)
	rekeyCmd.Flags().StringVar(&rekeyNewKey, "new-key", "", "New passphrase (non-interactive mode)")
	rekeyCmd.Flags().StringVar(&rekeyNewRawKey, "new-raw-key", "", "New raw key as hex digits")
	rekeyCmd.MarkFlagsMutuallyExclusive("new-key", "new-raw-key")
}

func runRekey(cmd *cobra.Command, args []string) error {
	factory, err := newFactory(args[0])
	if err != nil {
		return err
	}
	if factory.Encryption() == nil {
		return fmt.Errorf("%s has no encryption configured", args[0])
	}

	k, err := rekeyKey.resolve(factory, "Current passphrase")
	if err != nil {
		return err
	}
	defer k.Wipe()

	var next *key.Key
	switch {
	case rekeyNewRawKey != "":
		next, err = key.RawFromHex(rekeyNewRawKey)
	case rekeyNewKey != "":
		next = key.Passphrase(rekeyNewKey)
	default:
		next, err = promptNewKey("New passphrase")
	}
	if err != nil {
		return err
	}
	defer next.Wipe()

	conn, err := factory.CreateWithRekey(cmd.Context(), k, next)
	if err != nil {
		return err
	}
	if err := conn.Close(); err != nil {
		return err
	}

	if key.InKeychain(factory.DBName()) {
		if err := key.StoreInKeychain(factory.DBName(), next); err != nil {
			return fmt.Errorf("database rekeyed but keychain update failed: %w", err)
		}
		fmt.Println("Keychain updated")
	}
	fmt.Printf("Rekeyed %s\n", factory.Path())
	return nil
}
