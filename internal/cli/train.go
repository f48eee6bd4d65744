package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streakforge/streakd/internal/config"
	"github.com/streakforge/streakd/internal/infra/classifier"
	"github.com/streakforge/streakd/internal/infra/sqlite"
)

func init() {
	trainCmd.Flags().StringVar(&trainData, "data", "", "Path to labeled JSONL corpus (required)")
	trainCmd.Flags().StringVar(&trainVersion, "model-version", "", "Model version tag (default from config)")
	_ = trainCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(trainCmd)
}

var (
	trainData    string
	trainVersion string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the help-post content classifier",
	Long: `Train the content classifier from a labeled JSONL corpus
({"text": "...", "label": 0|1} per line) and store the model for the
API server to load.`,
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	version := trainVersion
	if version == "" {
		version = cfg.String("model_versions.help_post_classifier", "1.0.0")
	}

	samples, err := classifier.LoadSamples(trainData)
	if err != nil {
		return err
	}

	model, report, err := classifier.Train(samples, version)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(config.Home())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	blob, err := model.Encode()
	if err != nil {
		return err
	}
	info := sqlite.ModelInfo{
		ID:        model.ID,
		Version:   model.Version,
		TrainedAt: model.TrainedAt,
		Samples:   report.Samples,
		Accuracy:  report.Accuracy,
	}
	if err := db.SaveClassifierModel(info, blob); err != nil {
		return err
	}

	fmt.Printf("Trained model %s (v%s)\n", model.ID, model.Version)
	fmt.Printf("  samples:  %d (holdout %d)\n", report.Samples, report.Holdout)
	fmt.Printf("  accuracy: %.1f%%\n", report.Accuracy*100)
	return nil
}
