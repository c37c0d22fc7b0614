package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/risco/internal/classifier"
	"github.com/kiranshivaraju/risco/internal/config"
	"github.com/kiranshivaraju/risco/internal/dataset"
)

const (
	trainSourceAuto       = "auto"
	trainSourceHistorical = "historical"
	trainSourceSynthetic  = "synthetic"
)

var trainSource string

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Retrain the risk model and replace the stored artifact",
	Long: `Builds a training table, cross-validates a candidate model and, when its
mean AUC passes the quality gate, replaces the stored artifact.

A rejected candidate exits with status 2 and leaves the previous artifact active.`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainSource, "source", trainSourceAuto,
		"training data: historical, synthetic or auto (historical when it has both classes)")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	switch trainSource {
	case trainSourceAuto, trainSourceHistorical, trainSourceSynthetic:
	default:
		return fmt.Errorf("--source must be one of auto, historical, synthetic; got %q", trainSource)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := initLogger(os.Stderr, cfg.Log)

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	table, source, err := trainingTable(ctx, a.builder, trainSource, cfg.Model, logger)
	if err != nil {
		return err
	}

	report, err := a.classifier.TrainFrom(ctx, table, source)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	return writeReport(cmd.OutOrStdout(), report)
}

func trainingTable(ctx context.Context, src classifier.HistoricalSource, mode string, cfg config.ModelConfig, logger *slog.Logger) (*dataset.Table, string, error) {
	if mode == trainSourceSynthetic {
		return dataset.GenerateSynthetic(cfg.SyntheticSamples, cfg.Seed), classifier.SourceSynthetic, nil
	}

	table, err := src.BuildHistorical(ctx)
	if err != nil {
		if mode == trainSourceHistorical {
			return nil, "", fmt.Errorf("build historical dataset: %w", err)
		}
		logger.Warn("historical dataset unavailable, using synthetic data", "error", err)
		return dataset.GenerateSynthetic(cfg.SyntheticSamples, cfg.Seed), classifier.SourceSynthetic, nil
	}
	if mode == trainSourceAuto && !table.HasLabelDiversity() {
		logger.Info("historical dataset lacks label diversity, using synthetic data", "rows", table.Len())
		return dataset.GenerateSynthetic(cfg.SyntheticSamples, cfg.Seed), classifier.SourceSynthetic, nil
	}
	return table, classifier.SourceHistorical, nil
}

func writeReport(w io.Writer, report *classifier.TrainingReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
