package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morph-tutor/backend/internal/catalog"
	"github.com/morph-tutor/backend/internal/storage/sqlite"
)

var loadLessonsCmd = &cobra.Command{
	Use:   "load-lessons",
	Short: "Sync the lesson catalog from the media directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		store, err := openSQLite(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		summary, err := catalog.NewLoader(store, cfg.Catalog.MediaDir, cfg.Catalog.URLPrefix).Load(context.Background())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d lessons with %d pages from %s\n",
			summary.Lessons, summary.Pages, cfg.Catalog.MediaDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadLessonsCmd)
}

func openSQLite(path string) (*sqlite.Client, error) {
	store, err := sqlite.NewClient(path)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
