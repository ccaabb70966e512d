package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/phantom-risk/internal/runner"
)

const defaultConfigPath = "configs/risk-assessment/config.yaml"

func newRootCmd() *cobra.Command {
	configPath := os.Getenv("RISK_ASSESSMENT_CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	root := &cobra.Command{
		Use:           "risk-assessment",
		Short:         "Membership inference risk assessment of anonymization methods",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Path to application configuration file")

	root.AddCommand(
		newRunCmd(&configPath),
		newSeriesCmd(&configPath),
		newTargetsCmd(&configPath),
	)
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var paths runner.Paths
	var name string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single risk assessment, one per configured feature type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), *configPath, func(ctx context.Context, r *runner.Runner) error {
				return r.RunAssessment(ctx, paths, name)
			})
		},
	}

	cmd.Flags().StringVar(&paths.Risk, "risk-config", "", "Path to risk assessment configuration")
	cmd.Flags().StringVar(&paths.Data, "data-config", "", "Path to data configuration")
	cmd.Flags().StringVar(&paths.Anonymization, "anonymization-config", "", "Path to anonymization configuration")
	cmd.Flags().StringVar(&name, "name", "", "Experiment name, used as series name of the result files")
	for _, flag := range []string{"risk-config", "data-config", "anonymization-config", "name"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}

func newSeriesCmd(configPath *string) *cobra.Command {
	var seriesConfig string

	cmd := &cobra.Command{
		Use:   "series",
		Short: "Run every combination of a series configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), *configPath, func(ctx context.Context, r *runner.Runner) error {
				return r.RunSeries(ctx, seriesConfig)
			})
		},
	}

	cmd.Flags().StringVar(&seriesConfig, "series-config", "", "Path to series configuration")
	_ = cmd.MarkFlagRequired("series-config")
	return cmd
}

func newTargetsCmd(configPath *string) *cobra.Command {
	var dataConfig, outputDir string

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Rank all records by outlierness and write targets_{dataset}.csv",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.runner.SelectTargets(dataConfig, outputDir)
			return err
		},
	}

	cmd.Flags().StringVar(&dataConfig, "data-config", "", "Path to data configuration")
	cmd.Flags().StringVar(&outputDir, "output-dir", ".", "Directory of the targets file")
	_ = cmd.MarkFlagRequired("data-config")
	return cmd
}
