package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/russellromney/cipherdb/internal/key"
)

var keychainCmd = &cobra.Command{
	Use:   "keychain",
	Short: "Manage OS keychain integration",
	Long: `Manage OS keychain integration for passwordless opens.

When enabled, the key of a database is stored in the OS keychain
(macOS Keychain, Windows Credential Manager, or Linux Secret Service).
Commands then open the database without prompting.

Examples:
  cipherdb keychain status app.db
  cipherdb keychain enable app.db
  cipherdb keychain disable app.db`,
}

var keychainStatusCmd = &cobra.Command{
	Use:   "status <db>",
	Short: "Show keychain status",
	Long: `Show whether keychain integration is available and enabled for a database.

Example:
  cipherdb keychain status app.db`,
	Args: cobra.ExactArgs(1),
	RunE: runKeychainStatus,
}

var keychainEnableCmd = &cobra.Command{
	Use:   "enable <db>",
	Short: "Enable keychain integration",
	Long: `Enable keychain integration for a database.

The key is verified by opening the database before it is stored.

Example:
  cipherdb keychain enable app.db`,
	Args: cobra.ExactArgs(1),
	RunE: runKeychainEnable,
}

var keychainDisableCmd = &cobra.Command{
	Use:   "disable <db>",
	Short: "Disable keychain integration",
	Long: `Disable keychain integration and remove the key from the keychain.

Example:
  cipherdb keychain disable app.db`,
	Args: cobra.ExactArgs(1),
	RunE: runKeychainDisable,
}

var keychainKey keyFlags

func init() {
	rootCmd.AddCommand(keychainCmd)
	keychainCmd.AddCommand(keychainStatusCmd)
	keychainCmd.AddCommand(keychainEnableCmd)
	keychainCmd.AddCommand(keychainDisableCmd)
	keychainKey.register(keychainEnableCmd)
}

func runKeychainStatus(cmd *cobra.Command, args []string) error {
	available := key.KeychainAvailable()
	fmt.Printf("Keychain available: %v\n", available)

	if !available {
		fmt.Println("\nKeychain is not available on this system.")
		return nil
	}

	enabled := key.InKeychain(args[0])
	fmt.Printf("Keychain enabled for %s: %v\n", args[0], enabled)

	if enabled {
		fmt.Printf("\nYou can open %s without a passphrase.\n", args[0])
	} else {
		fmt.Printf("\nEnable with 'cipherdb keychain enable %s' for passwordless opens.\n", args[0])
	}
	return nil
}

func runKeychainEnable(cmd *cobra.Command, args []string) error {
	if !key.KeychainAvailable() {
		return fmt.Errorf("keychain is not available on this system")
	}
	if key.InKeychain(args[0]) {
		fmt.Println("Keychain is already enabled")
		return nil
	}

	factory, err := newFactory(args[0])
	if err != nil {
		return err
	}
	if factory.Encryption() == nil {
		return fmt.Errorf("%s has no encryption configured", args[0])
	}

	keychainKey.prompt = keychainKey.passphrase == "" && keychainKey.rawHex == ""
	k, err := keychainKey.resolve(factory, "Passphrase to store")
	if err != nil {
		return err
	}
	defer k.Wipe()

	// Verify the key before storing it
	conn, err := factory.Create(cmd.Context(), k)
	if err != nil {
		return fmt.Errorf("failed to verify key: %w", err)
	}
	if err := conn.Close(); err != nil {
		return err
	}

	if err := key.StoreInKeychain(args[0], k); err != nil {
		return fmt.Errorf("failed to enable keychain: %w", err)
	}
	fmt.Println("Keychain enabled. You can now open the database without a passphrase.")
	return nil
}

func runKeychainDisable(cmd *cobra.Command, args []string) error {
	if !key.InKeychain(args[0]) {
		fmt.Println("Keychain is not enabled")
		return nil
	}
	if err := key.DeleteFromKeychain(args[0]); err != nil {
		return fmt.Errorf("failed to disable keychain: %w", err)
	}
	fmt.Println("Keychain disabled. You'll need to enter your passphrase to open the database.")
	return nil
}
