package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/hiddenclasses/internal/cli"
	"github.com/hyperjump/hiddenclasses/internal/server"
	"github.com/hyperjump/hiddenclasses/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	outputFormat string
	postReplies  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate, review and publish one post",
	Long: `Fetches the first row of the content database, writes a post with retrieved
context, generates an image, and waits for approval on Telegram. Approved posts
are published to Mastodon. An empty database or a rejected post is not an error.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the retrieval index from the content database",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Draft replies to career conversations on Mastodon",
	Long: `Searches Mastodon for the configured keywords and drafts one reply per post.
Without --post this is a dry run that only prints the drafts.`,
	Args: cobra.NoArgs,
	RunE: runReply,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and storage status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("hiddenclasses version %s\n", version)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, indexCmd, replyCmd, statusCmd} {
		c.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format: text or json")
	}
	replyCmd.Flags().BoolVar(&postReplies, "post", false, "actually post replies (default: dry run)")
	rootCmd.AddCommand(runCmd, indexCmd, replyCmd, serveCmd, statusCmd, versionCmd)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	p, err := components.Pipeline(ctx)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx)
	if err != nil {
		return err
	}
	return cli.WriteRunResult(cmd.OutOrStdout(), res, format)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	stats, err := components.Indexer().Build(ctx)
	if err != nil {
		return err
	}
	return cli.WriteBuildStats(cmd.OutOrStdout(), stats, format)
}

func runReply(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	engine, err := components.ReplyEngine(ctx)
	if err != nil {
		return err
	}
	replies, err := engine.Run(ctx, postReplies)
	if err != nil {
		return err
	}
	return cli.WriteReplies(cmd.OutOrStdout(), replies, postReplies, format)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := storage.Inspect(&cfg.Storage, cfg.Embedding.Dimensions)
	if err != nil {
		return err
	}
	return cli.WriteStatus(cmd.OutOrStdout(), st, format)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	var runner server.Runner
	if p, err := components.Pipeline(ctx); err != nil {
		logger.Warn("publish pipeline disabled", zap.Error(err))
	} else {
		runner = p
	}
	var replier server.Replier
	if e, err := components.ReplyEngine(ctx); err != nil {
		logger.Warn("reply engine disabled", zap.Error(err))
	} else {
		replier = e
	}

	srv := server.NewServer(runner, components.Indexer(), replier, components.Status, &cfg.Server, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}
