package cmd

import (
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
)

var deleteKind string

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := rowKindFromFlag(deleteKind)
		if err != nil {
			return err
		}
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid row id %q: %w", args[0], err)
		}

		rs, err := openRowStore()
		if err != nil {
			return err
		}
		defer rs.Close()

		if err := rs.Delete(kind, id); err != nil {
			return err
		}
		fmt.Printf("Deleted %s row %s\n", kind, id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVar(&deleteKind, "kind", "vertex", "Row kind (vertex or edge)")
}
