package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdpress/presto/internal/blob"
	"github.com/mdpress/presto/internal/config"
	logpkg "github.com/mdpress/presto/internal/logger"
)

var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Inspect and manage the durable blob store",
}

// withStore runs fn against the configured blob store.
func withStore(fn func(ctx context.Context, store blob.Store) error) {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fatal("Failed to load config", err)
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

	if err := fn(ctx, store); err != nil {
		fatal("blob command failed", err)
	}
}

var blobGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print an object's bytes to stdout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store blob.Store) error {
			data, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		})
	},
}

var blobPutCmd = &cobra.Command{
	Use:   "put <key> <file>",
	Short: "Upload a file under a key",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store blob.Store) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			if err := store.Put(ctx, args[0], data); err != nil {
				return err
			}
			fmt.Printf("Stored %s (%d bytes)\n", args[0], len(data))
			return nil
		})
	},
}

var blobExistsCmd = &cobra.Command{
	Use:   "exists <key>",
	Short: "Report whether a key exists",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store blob.Store) error {
			ok, err := store.Exists(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		})
	},
}

var blobDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete an object",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store blob.Store) error {
			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

var blobListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List keys, optionally under a prefix",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store blob.Store) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := store.List(ctx, prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(blobCmd)
	blobCmd.AddCommand(blobGetCmd)
	blobCmd.AddCommand(blobPutCmd)
	blobCmd.AddCommand(blobExistsCmd)
	blobCmd.AddCommand(blobDeleteCmd)
	blobCmd.AddCommand(blobListCmd)
}
