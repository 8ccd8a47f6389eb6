package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reposcope/reposcope/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tool surface over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// stdout carries the protocol; everything else goes to stderr
		a.logger.Info("mcp server starting",
			zap.String("version", version))

		server := mcp.NewServer(mcp.Deps{
			Storage:  a.store,
			Indexer:  a.indexer,
			Searcher: a.searcher,
			Cache:    a.cache,
			Logger:   a.logger,
		})

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Serve(ctx)
		}()

		select {
		case sig := <-sigChan:
			a.logger.Info("shutting down", zap.String("signal", sig.String()))
			cancel()
			return nil
		case err := <-errChan:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
