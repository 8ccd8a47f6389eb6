package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show repository index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		if flagRepository != "" {
			stats, err := a.store.Stats(ctx, flagRepository)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", stats.Repository)
			fmt.Printf("  Files:      %d\n", stats.FilesCount)
			fmt.Printf("  Chunks:     %d\n", stats.ChunksCount)
			fmt.Printf("  Embeddings: %d\n", stats.EmbeddingsCount)
			fmt.Printf("  Graph:      %d nodes, %d edges\n", stats.NodesCount, stats.EdgesCount)
			if !stats.LastIndexedAt.IsZero() {
				fmt.Printf("  Indexed:    %s\n", stats.LastIndexedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		}

		repos, err := a.store.ListRepositories(ctx)
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("no repositories indexed")
			return nil
		}
		for _, repo := range repos {
			fmt.Printf("%-24s %5d files %6d chunks  %s\n",
				repo.Name, repo.TotalFiles, repo.TotalChunks, repo.RootPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
