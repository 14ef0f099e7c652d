package cmd

import (
	"github.com/spf13/cobra"

	"github.com/torvik/yggdb/pkg/api"
	"github.com/torvik/yggdb/pkg/codec"
	"github.com/torvik/yggdb/pkg/store"
)

var serveBind string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve rows over HTTP",
	Long: `Serve rows over a REST API. Vertex and edge rows both use the
active schema; /metrics exposes Prometheus metrics.

Example:
  yggdb serve --bind 127.0.0.1:9200`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := activeSchema()
		if err != nil {
			return err
		}
		rs, err := openRowStore()
		if err != nil {
			return err
		}
		defer rs.Close()

		bind := serveBind
		if bind == "" {
			bind = cfg.Metrics.Bind
		}
		return api.StartServer(rs, api.ServerConfig{
			Bind: bind,
			Schemas: map[store.RowKind]*codec.Schema{
				store.KindVertex: schema,
				store.KindEdge:   schema,
			},
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "Listen address (defaults to metrics.bind from config)")
}
