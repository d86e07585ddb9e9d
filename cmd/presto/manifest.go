package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mdpress/presto/internal/config"
	logpkg "github.com/mdpress/presto/internal/logger"
)

var (
	manifestRefresh bool
	manifestQuality int
)

// manifestCmd generates a single manifest without starting the server.
// Useful for pre-warming the store or inspecting output.
var manifestCmd = &cobra.Command{
	Use:   "manifest <identifier>",
	Short: "Generate one manifest and print it to stdout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		env := config.GetEnv()
		cfg, err := config.Load(env)
		if err != nil {
			fatal("Failed to load config", err)
		}
		if manifestQuality > 0 {
			cfg.Pipeline.Quality = manifestQuality
		}

		logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
		if err != nil {
			fatal("Failed to create logger", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx := context.Background()
		store, err := newBlobStore(ctx, cfg, logger)
		if err != nil {
			fatal("Failed to create blob store", err)
		}
		defer store.Close()

		svc := newManifestService(cfg, store, logger)

		m, err := svc.GetManifest(ctx, args[0], manifestRefresh)
		if err != nil {
			logger.Error("Manifest generation failed", zap.String("identifier", args[0]), zap.Error(err))
			fatal("Failed to generate manifest", err)
		}

		out, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			fatal("Failed to encode manifest", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.Flags().BoolVar(&manifestRefresh, "refresh", false, "Rebuild even if a cached manifest exists")
	manifestCmd.Flags().IntVar(&manifestQuality, "quality", 0, "Override derivative JPEG quality (1-100)")
}
