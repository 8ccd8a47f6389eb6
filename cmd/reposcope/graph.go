package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reposcope/reposcope/internal/graph"
	"github.com/reposcope/reposcope/pkg/types"
)

var (
	flagDirection string
	flagDepth     int
)

var graphCmd = &cobra.Command{
	Use:   "graph <name_path>",
	Short: "Walk the dependency graph from a symbol",
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

		ctx := cmd.Context()
		start, err := a.store.FindNodeByNamePath(ctx, flagRepository, args[0])
		if err != nil {
			return fmt.Errorf("symbol %q: %w", args[0], err)
		}

		traverser := graph.NewTraverser(a.store)
		sub, err := traverser.Traverse(ctx, start.ID, types.Direction(flagDirection), flagDepth)
		if err != nil {
			return err
		}

		fmt.Printf("%d nodes, %d edges (%s, depth %d)\n\n", len(sub.Nodes), len(sub.Edges), flagDirection, flagDepth)

		labels := make(map[int64]string, len(sub.Nodes))
		for _, node := range sub.Nodes {
			labels[node.ID] = node.Label
			fmt.Printf("  %s (%s) %s\n", node.Label, node.Kind, node.FilePath)
		}
		fmt.Println()
		for _, edge := range sub.Edges {
			fmt.Printf("  %s -%s-> %s\n", labels[edge.SourceID], edge.Relation, labels[edge.TargetID])
		}
		return nil
	},
}

var pathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Find the minimum-hop dependency route between two symbols",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagRepository == "" {
			return fmt.Errorf("--repository is required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		from, err := a.store.FindNodeByNamePath(ctx, flagRepository, args[0])
		if err != nil {
			return fmt.Errorf("symbol %q: %w", args[0], err)
		}
		to, err := a.store.FindNodeByNamePath(ctx, flagRepository, args[1])
		if err != nil {
			return fmt.Errorf("symbol %q: %w", args[1], err)
		}

		traverser := graph.NewTraverser(a.store)
		path, err := traverser.ShortestPath(ctx, from.ID, to.ID)
		if errors.Is(err, types.ErrNoPath) {
			fmt.Printf("no path from %s to %s\n", args[0], args[1])
			return nil
		}
		if err != nil {
			return err
		}

		nodes, err := a.store.GetNodes(ctx, path.NodeIDs)
		if err != nil {
			return err
		}
		labels := make([]string, 0, len(nodes))
		for _, node := range nodes {
			labels = append(labels, node.Label)
		}
		fmt.Printf("%d hops: %s\n", path.Length, strings.Join(labels, " -> "))
		return nil
	},
}

func init() {
	graphCmd.Flags().StringVar(&flagDirection, "direction", "forward", "forward, backward, or both")
	graphCmd.Flags().IntVar(&flagDepth, "depth", 3, "traversal depth bound")
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(pathCmd)
}
