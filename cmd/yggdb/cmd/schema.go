package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/torvik/yggdb/pkg/codec"
	"github.com/torvik/yggdb/pkg/expr"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the active schema's field layout",
	Long: `Show the active schema's field layout: declaration order, types,
fixed-region offsets and null-bit positions.

Example:
  yggdb schema
  yggdb schema --schema person.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := activeSchema()
		if err != nil {
			return err
		}

		fmt.Printf("version:       %d\n", schema.Version())
		fmt.Printf("fields:        %d\n", schema.NumFields())
		fmt.Printf("nullable:      %d\n", schema.NumNullable())
		fmt.Printf("fixed region:  %d bytes\n\n", schema.Size())
		fmt.Printf("%-4s %-16s %-14s %-8s %-6s %-8s %s\n",
			"#", "NAME", "TYPE", "OFFSET", "SIZE", "NULLBIT", "DEFAULT")
		for i := 0; i < schema.NumFields(); i++ {
			f := schema.Field(i)
			nullBit := "-"
			if f.Nullable {
				nullBit = strconv.Itoa(f.NullPos)
			}
			hasDefault := ""
			if f.HasDefault() {
				hasDefault = "yes"
			}
			fmt.Printf("%-4d %-16s %-14s %-8d %-6d %-8s %s\n",
				i, f.Name, f.Type, f.Offset, f.Size, nullBit, hasDefault)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

// schemaDoc is the YAML shape of a schema file.
type schemaDoc struct {
	Version uint64           `yaml:"version"`
	Fields  []schemaFieldDoc `yaml:"fields"`
}

type schemaFieldDoc struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Nullable bool    `yaml:"nullable"`
	Size     int     `yaml:"size"`
	Default  *string `yaml:"default"`
}

var typesByName = map[string]codec.FieldType{
	"bool":         codec.TypeBool,
	"int8":         codec.TypeInt8,
	"int16":        codec.TypeInt16,
	"int32":        codec.TypeInt32,
	"int64":        codec.TypeInt64,
	"float":        codec.TypeFloat,
	"double":       codec.TypeDouble,
	"fixed_string": codec.TypeFixedString,
	"string":       codec.TypeString,
	"date":         codec.TypeDate,
	"time":         codec.TypeTime,
	"datetime":     codec.TypeDateTime,
	"timestamp32":  codec.TypeTimestamp32,
	"timestamp64":  codec.TypeTimestamp64,
	"geography":    codec.TypeGeography,
	"duration":     codec.TypeDuration,
	"list<string>": codec.TypeListString,
	"list<int>":    codec.TypeListInt,
	"list<float>":  codec.TypeListFloat,
	"set<string>":  codec.TypeSetString,
	"set<int>":     codec.TypeSetInt,
	"set<float>":   codec.TypeSetFloat,
}

// activeSchema loads the schema named by --schema, or the demo schema.
func activeSchema() (*codec.Schema, error) {
	if schemaFile == "" {
		return demoSchema()
	}
	return loadSchemaFile(schemaFile)
}

func loadSchemaFile(path string) (*codec.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var doc schemaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	defs := make([]codec.FieldDef, 0, len(doc.Fields))
	for _, fd := range doc.Fields {
		ft, ok := typesByName[strings.ToLower(fd.Type)]
		if !ok {
			return nil, fmt.Errorf("field %q: unknown type %q", fd.Name, fd.Type)
		}
		def := codec.FieldDef{
			Name:      fd.Name,
			Type:      ft,
			Nullable:  fd.Nullable,
			FixedSize: fd.Size,
		}
		if fd.Default != nil {
			v, err := parseScalar(ft, *fd.Default)
			if err != nil {
				return nil, fmt.Errorf("field %q default: %w", fd.Name, err)
			}
			blob, err := expr.Encode(v)
			if err != nil {
				return nil, fmt.Errorf("field %q default: %w", fd.Name, err)
			}
			def.Default = blob
		}
		defs = append(defs, def)
	}
	return codec.NewSchema(doc.Version, defs)
}

// demoSchema is a person vertex used when no schema file is given.
func demoSchema() (*codec.Schema, error) {
	return codec.NewSchema(1, []codec.FieldDef{
		{Name: "name", Type: codec.TypeString},
		{Name: "age", Type: codec.TypeInt32},
		{Name: "score", Type: codec.TypeDouble, Nullable: true},
		{Name: "birthday", Type: codec.TypeDate, Nullable: true},
		{Name: "tags", Type: codec.TypeSetString, Nullable: true},
		{Name: "status", Type: codec.TypeString, Default: expr.MustEncode(codec.NewString("active"))},
	})
}
