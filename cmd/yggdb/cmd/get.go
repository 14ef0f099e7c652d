package cmd

import (
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/torvik/yggdb/pkg/codec"
)

var getKind string

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a row and print its fields",
	Long: `Fetch a stored row by ID, decode it against the active schema and
print its fields.

Example:
  yggdb get 2StGM5dM4NBhIht4GCnhEIYkZNV`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := rowKindFromFlag(getKind)
		if err != nil {
			return err
		}
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid row id %q: %w", args[0], err)
		}
		schema, err := activeSchema()
		if err != nil {
			return err
		}

		rs, err := openRowStore()
		if err != nil {
			return err
		}
		defer rs.Close()

		encoded, err := rs.Get(kind, id)
		if err != nil {
			return err
		}
		reader, err := codec.NewRowReader(schema, encoded)
		if err != nil {
			return err
		}

		fmt.Printf("%s row %s (schema v%d, written %s)\n",
			kind, id, schema.Version(), microsecTime(reader.Timestamp()))
		for i := 0; i < schema.NumFields(); i++ {
			f := schema.Field(i)
			v, err := reader.ValueByIndex(i)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
			fmt.Printf("  %-16s %s\n", f.Name, formatValue(v))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVar(&getKind, "kind", "vertex", "Row kind (vertex or edge)")
}
