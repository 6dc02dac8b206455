package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/russellromney/cipherdb/internal/cipher"
	"github.com/russellromney/cipherdb/internal/encryption"
	"github.com/russellromney/cipherdb/internal/pragma"
)

var ciphersCmd = &cobra.Command{
	Use:   "ciphers",
	Short: "List ciphers and their presets",
	Long: `List the supported ciphers, whether they accept raw keys, and their presets.

With --statements the configuration statements of each preset are printed.

Examples:
  cipherdb ciphers
  cipherdb ciphers --statements`,
	Args: cobra.NoArgs,
	RunE: runCiphers,
}

var ciphersStatements bool

func init() {
	rootCmd.AddCommand(ciphersCmd)
	ciphersCmd.Flags().BoolVar(&ciphersStatements, "statements", false, "Print the statements each preset emits")
}

func runCiphers(cmd *cobra.Command, args []string) error {
	for _, c := range cipher.All() {
		raw := "passphrase only"
		if c.SupportsRawKey() {
			raw = "passphrase or raw key"
		}
		fmt.Printf("%s (id %d, %s)\n", c, c.ID(), raw)

		for _, name := range cipher.Presets(c) {
			cfg, err := cipher.Preset(c, name)
			if err != nil {
				return err
			}
			fmt.Printf("  %-10s legacy=%d page_size=%d\n", name, cfg.Legacy(), cfg.LegacyPageSize())
			if !ciphersStatements {
				continue
			}

			enc, err := encryption.New(nil, func(b *encryption.Builder) { b.Cipher(cfg) })
			if err != nil {
				return err
			}
			ops, err := pragma.Ops(enc, true, false)
			if err != nil {
				return err
			}
			sqls, err := pragma.Render(ops)
			if err != nil {
				return err
			}
			for _, sql := range sqls {
				fmt.Printf("    %s\n", sql)
			}
		}
	}
	return nil
}
