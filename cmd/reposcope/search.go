package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/reposcope/reposcope/internal/searcher"
	"github.com/reposcope/reposcope/pkg/types"
)

var (
	flagSearchMode   string
	flagSearchDomain string
	flagSearchLimit  int
	flagMinScore     float64
	flagMaxDistance  float64
	flagNoCache      bool
	flagShowContent  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed code",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagRepository == "" {
			return fmt.Errorf("--repository is required")
		}
		query := strings.Join(args, " ")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		limit := flagSearchLimit
		if limit <= 0 {
			limit = a.cfg.Search.DefaultLimit
		}

		resp, err := a.searcher.Search(cmd.Context(), searcher.SearchRequest{
			Repository:  flagRepository,
			Query:       query,
			Mode:        searcher.SearchMode(flagSearchMode),
			Domain:      types.EmbeddingDomain(flagSearchDomain),
			Limit:       limit,
			MinScore:    flagMinScore,
			MaxDistance: flagMaxDistance,
			RRFConstant: a.cfg.Search.RRFConstant,
			UseCache:    !flagNoCache,
		})
		if err != nil {
			return err
		}

		cached := ""
		if resp.CacheHit {
			cached = " (cached)"
		}
		fmt.Printf("%d results in %s%s\n\n", resp.TotalResults, resp.Duration.Round(time.Millisecond), cached)

		for _, r := range resp.Results {
			fmt.Printf("%2d. [%6.4f] %s\n", r.Rank, r.Score, r.Chunk.NamePath)
			fmt.Printf("    %s:%d-%d (%s %s)\n",
				r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Chunk.Language, r.Chunk.ChunkType)
			if r.Chunk.Signature != "" {
				fmt.Printf("    %s\n", r.Chunk.Signature)
			}
			if flagShowContent {
				fmt.Println()
				fmt.Println(indent(r.Chunk.Content, "    "))
			}
			fmt.Println()
		}
		return nil
	},
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func init() {
	searchCmd.Flags().StringVar(&flagSearchMode, "mode", "hybrid", "search mode: hybrid, vector, or lexical")
	searchCmd.Flags().StringVar(&flagSearchDomain, "domain", "text", "vector channel: text or code")
	searchCmd.Flags().IntVarP(&flagSearchLimit, "limit", "n", 0, "maximum results (default from config)")
	searchCmd.Flags().Float64Var(&flagMinScore, "min-score", 0, "lexical score floor")
	searchCmd.Flags().Float64Var(&flagMaxDistance, "max-distance", 0, "vector distance ceiling, 0 disables")
	searchCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "bypass the result cache")
	searchCmd.Flags().BoolVar(&flagShowContent, "content", false, "print chunk source for each result")
	rootCmd.AddCommand(searchCmd)
}
