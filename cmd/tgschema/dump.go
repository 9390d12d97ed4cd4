package main

import (
	"encoding/json"
	"fmt"

	"github.com/lemmego/typegoose"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDumpCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump [class...]",
		Short: "Print synthesized schemas",
		Long:  "Synthesize the named classes, or every declared class, and print their schemas as YAML or JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := typegoose.NewStore()
			if err := opts.register(store); err != nil {
				return err
			}
			descriptions, err := describe(store, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(descriptions); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(descriptions)
			default:
				return fmt.Errorf("unknown format %q, want yaml or json", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml or json)")
	return cmd
}

// describe synthesizes classes (all declared classes when empty) in order
func describe(store *typegoose.Store, classes []string) ([]typegoose.SchemaDescription, error) {
	if len(classes) == 0 {
		classes = store.Names()
	}
	synth := typegoose.NewSynthesizer(store)
	descriptions := make([]typegoose.SchemaDescription, 0, len(classes))
	for _, class := range classes {
		sch, err := synth.Synthesize(class)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize %s: %w", class, err)
		}
		descriptions = append(descriptions, sch.Describe())
	}
	return descriptions, nil
}
