package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/morph-tutor/backend/internal/evaluation"
	"github.com/morph-tutor/backend/internal/recommend"
)

var evalCmd = &cobra.Command{
	Use:   "eval-recommendations <dataset.json>",
	Short: "Score the lesson recommendation detector against labelled answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read dataset: %w", err)
		}
		dataset, err := evaluation.LoadDatasetFromJSON(data)
		if err != nil {
			return err
		}

		store, err := openSQLite(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		vocab, err := recommend.VocabularyFor(cfg.Recommend.Language)
		if err != nil {
			return err
		}
		detector := recommend.NewDetector(store, vocab, cfg.Recommend.FuzzyThreshold)

		report, err := evaluation.NewEvaluator(detector).RunDatasetEvaluation(context.Background(), dataset)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), evaluation.GenerateReport(report))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)
}
