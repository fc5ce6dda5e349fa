package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/siherrmann/directory"
	"github.com/siherrmann/directory/helper"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var file string
	var envFile string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the public entity directory from a YAML file",
		Long: `seed reads entities and relationships from a YAML file and creates them
through the directory. Entities that already exist with the same name and
type are reused instead of created again.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seedFile, err := LoadSeedFile(file)
			if err != nil {
				return err
			}

			config, err := directory.NewConfig(envFile)
			if err != nil {
				return err
			}

			d, err := directory.New(config)
			if err != nil {
				return err
			}
			defer d.Close()

			logger := helper.NewLogger(cmd.ErrOrStderr(), helper.ParseLogLevel(config.LogLevel))
			result, err := Seed(cmd.Context(), d, seedFile, logger)
			if result != nil {
				logger.Info(
					"Seeding finished",
					slog.Int("entities_created", result.EntitiesCreated),
					slog.Int("entities_skipped", result.EntitiesSkipped),
					slog.Int("relationships_created", result.RelationshipsCreated),
				)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d entities created, %d skipped, %d relationships created\n",
				result.EntitiesCreated, result.EntitiesSkipped, result.RelationshipsCreated)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	cmd.Flags().StringVar(&envFile, "env", ".env", "environment file to load before reading the configuration")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
