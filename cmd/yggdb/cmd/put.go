package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/torvik/yggdb/pkg/codec"
	"github.com/torvik/yggdb/pkg/expr"
)

var putKind string

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put <field=value> [field=value ...]",
	Short: "Encode a row and store it",
	Long: `Encode field values through the row writer and store the finished
row. Fields left out fall back to their schema default or to null.

Example:
  yggdb put name=ada age=36 tags=engineer,pioneer
  yggdb put --kind edge weight=0.5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := rowKindFromFlag(putKind)
		if err != nil {
			return err
		}
		schema, err := activeSchema()
		if err != nil {
			return err
		}

		writer, err := codec.NewRowWriter(schema)
		if err != nil {
			return err
		}
		writer.Resolver = expr.NewEvaluator()

		for _, arg := range args {
			name, raw, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("argument %q is not field=value", arg)
			}
			idx := schema.FieldIndex(name)
			if idx < 0 {
				return fmt.Errorf("unknown field %q", name)
			}
			v, err := parseFieldValue(schema.Field(idx), raw)
			if err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			if v.IsNull() {
				err = writer.SetNull(idx)
			} else {
				err = writer.SetValue(idx, v)
			}
			if err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
		}

		if err := writer.Finish(); err != nil {
			return err
		}
		encoded, err := writer.Encoded()
		if err != nil {
			return err
		}

		rs, err := openRowStore()
		if err != nil {
			return err
		}
		defer rs.Close()

		id, err := rs.Put(kind, encoded)
		if err != nil {
			return err
		}
		fmt.Printf("Stored %s row %s (%d bytes)\n", kind, id, len(encoded))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringVar(&putKind, "kind", "vertex", "Row kind (vertex or edge)")
}
