/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/torvik/yggdb/pkg/config"
)

var (
	cfgFile    string
	dataDir    string
	schemaFile string
	cfg        *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "yggdb",
	Short: "YggDB - graph row store",
	Long: `YggDB stores schema-encoded graph rows in an embedded key-value
database. Rows are encoded with a versioned binary codec; put, get and
inspect work against a schema given as a YAML file (or the built-in demo
schema when none is given).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" && config.ConfigExists(cfgFile) {
			loaded, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded
		} else {
			cfg = config.DefaultConfig()
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory for the store (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&schemaFile, "schema", "s", "", "Schema YAML file (default is the built-in demo schema)")
}
