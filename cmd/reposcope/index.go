package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a repository for search and graph queries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		repository := repositoryName(root)

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("Indexing %s as %q...\n", root, repository)

		result, err := a.indexer.IndexRepository(cmd.Context(), repository, root)
		if err != nil {
			return err
		}

		fmt.Printf("\nDone in %s (run %s)\n", result.Duration.Round(time.Millisecond), result.RunID)
		fmt.Printf("  Files:  %d indexed, %d skipped, %d removed, %d failed\n",
			result.FilesIndexed, result.FilesSkipped, result.FilesRemoved, result.FilesFailed)
		fmt.Printf("  Chunks: %d\n", result.ChunksCreated)

		for _, indexErr := range result.Errors {
			fmt.Printf("  error: %s\n", indexErr.Error())
		}
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex <file>",
	Short: "Force one file through the pipeline, ignoring its content hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagRepository == "" {
			return fmt.Errorf("--repository is required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.indexer.ReindexFile(cmd.Context(), flagRepository, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Reindexed %s: %d chunks (run %s)\n", args[0], result.ChunksCreated, result.RunID)
		for _, indexErr := range result.Errors {
			fmt.Printf("  error: %s\n", indexErr.Error())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(reindexCmd)
}
