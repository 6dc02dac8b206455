package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/russellromney/cipherdb/internal/config"
	"github.com/russellromney/cipherdb/internal/driver"
)

var rootCmd = &cobra.Command{
	Use:   "cipherdb",
	Short: "Open, rekey and migrate encrypted SQLite databases",
	Long: `cipherdb manages SQLite databases encrypted with SQLite3 Multiple Ciphers.

Databases live in a data directory (~/.cipherdb by default). Their cipher
scheme and the older schemes they may still be encrypted with are declared
in config.yaml inside that directory:

  driver: sqlite3mc
  databases:
    app.db:
      encryption: {cipher: sqlcipher, preset: default}
      migrations:
        - note: before 2.0
          encryption: {cipher: sqlcipher, preset: v3}

The driver must be a database/sql driver built with the encryption
extension. Databases not listed are opened without encryption.

Example workflow:
  cipherdb ciphers                         # List ciphers and presets
  cipherdb open app.db                     # Verify the key, migrate if needed
  cipherdb exec app.db "SELECT * FROM t"   # Run a statement
  cipherdb rekey app.db                    # Change the key
  cipherdb keychain enable app.db          # Store the key in the OS keychain`,
	SilenceUsage: true,
}

var (
	dataDirFlag string
	configFlag  string
	driverFlag  string
	verboseFlag bool
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default ~/.cipherdb)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Configuration file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "database/sql driver name (overrides the configuration)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log every statement (keys are redacted)")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig resolves the data directory and reads the configuration file.
func loadConfig() (*config.Config, *config.File, error) {
	var cfg *config.Config
	if dataDirFlag != "" {
		cfg = config.NewWithDataDir(dataDirFlag)
	} else {
		var err error
		if cfg, err = config.New(); err != nil {
			return nil, nil, err
		}
	}
	if configFlag != "" {
		cfg.ConfigPath = configFlag
	}

	file, err := cfg.Load()
	if err != nil {
		return nil, nil, err
	}
	if dataDirFlag != "" {
		file.DataDir = dataDirFlag
	}
	return cfg, file, nil
}

// newFactory builds the factory for dbName from the configuration.
func newFactory(dbName string) (*driver.Factory, error) {
	_, file, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts, err := file.FactoryOptions(dbName)
	if err != nil {
		return nil, err
	}
	if driverFlag != "" {
		opts = append(opts, driver.WithDriverName(driverFlag))
	}

	logger := newLogger()
	opts = append(opts, driver.WithLogger(func(line string) {
		logger.Debug(line)
	}))
	return driver.NewFactory(dbName, nil, opts...)
}
