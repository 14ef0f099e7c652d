package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/torvik/yggdb/pkg/codec"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <hex>",
	Short: "Decode a hex-encoded row against the active schema",
	Long: `Decode a hex-encoded row buffer without touching the store: header,
schema version, null bitmap, field values and the write timestamp.

Example:
  yggdb inspect 0901000568656c6c6f...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("invalid hex input: %w", err)
		}
		schema, err := activeSchema()
		if err != nil {
			return err
		}
		reader, err := codec.NewRowReader(schema, raw)
		if err != nil {
			return err
		}

		fmt.Printf("buffer:        %d bytes\n", len(raw))
		fmt.Printf("header:        0x%02x\n", raw[0])
		fmt.Printf("version:       %d\n", schema.Version())
		fmt.Printf("fixed region:  %d bytes\n", schema.Size())
		fmt.Printf("written:       %s\n\n", microsecTime(reader.Timestamp()))
		for i := 0; i < schema.NumFields(); i++ {
			f := schema.Field(i)
			v, err := reader.ValueByIndex(i)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
			fmt.Printf("  %-16s %-14s %s\n", f.Name, f.Type, formatValue(v))
		}
		return nil
	},
}

func microsecTime(us int64) string {
	return time.UnixMicro(us).UTC().Format(time.RFC3339)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
