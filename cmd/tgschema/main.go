// Command tgschema inspects the schemas synthesized from the declared
// classes and prepares their collections.
package main

import (
	"fmt"
	"os"

	"github.com/lemmego/typegoose"
	"github.com/lemmego/typegoose/internal/zoo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version information - set at build time
	Version = "dev"
)

const rootLong = `tgschema synthesizes the classes registered into the binary, prints their
schemas and creates the indexes they declare.

This build registers the internal zoo fixtures. Build newRootCmd with another
register function to inspect other classes.`

// registerFunc declares the classes the commands work on into a store
type registerFunc func(store *typegoose.Store) error

type rootOptions struct {
	configPath string
	verbose    bool
	register   registerFunc
}

func newRootCmd(register registerFunc) *cobra.Command {
	opts := &rootOptions{register: register}
	rootCmd := &cobra.Command{
		Use:           "tgschema",
		Short:         "Inspect synthesized typegoose schemas",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.verbose)
			if err != nil {
				return err
			}
			typegoose.SetLogger(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = typegoose.Logger().Sync()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./typegoose.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log synthesis and engine activity")

	rootCmd.AddCommand(newDumpCmd(opts))
	rootCmd.AddCommand(newPingCmd(opts))
	rootCmd.AddCommand(newEnsureIndexesCmd(opts))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tgschema version: %s\n", Version)
		},
	})
	return rootCmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func main() {
	if err := newRootCmd(zoo.Register).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
