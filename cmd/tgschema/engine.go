package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/lemmego/typegoose"
	"github.com/lemmego/typegoose/tgmongo"
	"github.com/lemmego/typegoose/tgredis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// openEngine connects to the engine named by config.Driver
func openEngine(ctx context.Context, config *typegoose.Config) (typegoose.Engine, error) {
	logger := typegoose.Logger().With(zap.String("driver", config.Driver))
	switch {
	case slices.Contains(tgmongo.Drivers, config.Driver):
		return tgmongo.New(ctx, *config, tgmongo.WithLogger(logger))
	case config.Driver == "redis":
		return tgredis.New(*config, tgredis.WithLogger(logger))
	default:
		return nil, typegoose.NewErrorf(typegoose.ErrorTypeUnsupported, "unsupported driver %q", config.Driver)
	}
}

func connect(cmd *cobra.Command, opts *rootOptions) (*typegoose.EngineRegistry, error) {
	config, err := typegoose.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	engine, err := openEngine(cmd.Context(), config)
	if err != nil {
		return nil, err
	}
	engines := typegoose.NewEngineRegistry()
	engines.SetDefault(engine)
	return engines, nil
}

func newPingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the configured engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			engines, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer engines.RemoveAll()

			health := engines.HealthCheck()
			var failed error
			for _, name := range engines.List() {
				status := "ok"
				if err := health[name]; err != nil {
					status = err.Error()
					failed = err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, status)
			}
			return failed
		},
	}
}

func newEnsureIndexesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes [class...]",
		Short: "Create the indexes declared by the classes",
		RunE: func(cmd *cobra.Command, args []string) error {
			engines, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer engines.RemoveAll()

			store := typegoose.NewStore()
			if err := opts.register(store); err != nil {
				return err
			}
			models := typegoose.NewModelRegistry(store, engines)

			classes := args
			if len(classes) == 0 {
				classes = store.Names()
			}
			for _, class := range classes {
				model, err := models.GetModelForClass(class)
				if err != nil {
					return err
				}
				if err := model.EnsureIndexes(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d indexes on %s\n", class, len(model.Handle().Indexes()), model.CollectionName())
			}
			return nil
		},
	}
}
