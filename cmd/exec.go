package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/russellromney/cipherdb/internal/pragma"
)

var execCmd = &cobra.Command{
	Use:   "exec <db> <sql>",
	Short: "Run a SQL statement",
	Long: `Run a SQL statement against a database and print any rows.

Columns are separated by tabs; the first line holds the column names.

Examples:
  cipherdb exec app.db "CREATE TABLE notes (body TEXT)"
  cipherdb exec app.db "SELECT * FROM notes" --key secret`,
	Args: cobra.ExactArgs(2),
	RunE: runExec,
}

var (
	execKey      keyFlags
	execNoHeader bool
)

func init() {
	rootCmd.AddCommand(execCmd)
	execKey.register(execCmd)
	execCmd.Flags().BoolVar(&execNoHeader, "no-header", false, "Do not print column names")
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	factory, err := newFactory(args[0])
	if err != nil {
		return err
	}
	k, err := execKey.resolve(factory, "Passphrase")
	if err != nil {
		return err
	}
	defer k.Wipe()

	conn, err := factory.Create(ctx, k)
	if err != nil {
		return err
	}
	defer conn.Close()

	newLogger().Debug("executing statement", "db", args[0], "sql", pragma.Redact(args[1]))
	rows, err := conn.Query(ctx, args[1])
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	if len(cols) > 0 && !execNoHeader {
		fmt.Println(strings.Join(cols, "\t"))
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	fields := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range values {
			switch v := v.(type) {
			case nil:
				fields[i] = "NULL"
			case []byte:
				fields[i] = string(v)
			default:
				fields[i] = fmt.Sprint(v)
			}
		}
		fmt.Println(strings.Join(fields, "\t"))
	}
	return rows.Err()
}
