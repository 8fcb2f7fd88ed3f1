package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morph-tutor/backend/internal/cache/redis"
)

var cacheFlushCmd = &cobra.Command{
	Use:   "cache-flush",
	Short: "Drop every cached embedding from redis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg := getConfig()

		client, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()

		n, err := client.InvalidateEmbeddings(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached embeddings\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheFlushCmd)
}
