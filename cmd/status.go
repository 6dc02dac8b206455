package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/russellromney/cipherdb/internal/config"
	"github.com/russellromney/cipherdb/internal/key"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured databases",
	Long: `Show the data directory and every database in the configuration.

Example:
  cipherdb status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, file, err := loadConfig()
	if err != nil {
		return err
	}
	dataDir, err := file.ResolvedDataDir()
	if err != nil {
		return err
	}

	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Printf("Configuration: %s\n", cfg.ConfigPath)
	if file.Driver != "" {
		fmt.Printf("Driver: %s\n", file.Driver)
	}
	fmt.Printf("Keychain available: %v\n", key.KeychainAvailable())

	if len(file.Databases) == 0 {
		fmt.Println("\nNo databases configured")
		return nil
	}

	names := make([]string, 0, len(file.Databases))
	for name := range file.Databases {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nDatabases:")
	for _, name := range names {
		db := file.Databases[name]
		enc, err := db.Encryption.Build()
		if err != nil {
			fmt.Printf("  %s: invalid encryption: %v\n", name, err)
			continue
		}
		migrations, err := db.MigrationConfig()
		if err != nil {
			fmt.Printf("  %s: invalid migrations: %v\n", name, err)
			continue
		}

		exists := "missing"
		if config.NewWithDataDir(dataDir).Exists(name) {
			exists = "exists"
		}
		fmt.Printf("  %s (%s)\n", name, exists)
		fmt.Printf("    encryption: %s\n", enc)
		for _, m := range migrations.AttemptOrder() {
			fmt.Printf("    migration:  %s (%s)\n", m.Note, m.Config)
		}
		if key.InKeychain(name) {
			fmt.Println("    key stored in keychain")
		}
	}
	return nil
}
