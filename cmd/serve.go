package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/zulipmcp/bridge/internal/bootstrap"
	"github.com/zulipmcp/bridge/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP stdio tool server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

// runServe is the default action of the root command too, so `zulip-mcp`
// with no subcommand behaves like `zulip-mcp serve`.
func runServe() error {
	cfg, creds, err := loadConfigAndCredentials()
	if err != nil {
		return err
	}
	log := telemetry.New(cfg.Log.Level)

	app, err := bootstrap.Build(cfg, creds, Version)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watchCredentialsFile(ctx, resolveZuliprcPath(), log)

	return app.Run(ctx)
}

// watchCredentialsFile logs when the credentials file changes on disk.
// Per spec.md, credentials are never auto-reloaded mid-process — the
// operator restarts the server to pick up a rotated key.
func watchCredentialsFile(ctx context.Context, path string, log *slog.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("serve: credentials file watch unavailable", "error", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		log.Debug("serve: not watching credentials file", "path", path, "error", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Warn("serve: credentials file changed on disk; restart to pick up new keys", "path", path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("serve: credentials watcher error", "error", err)
			}
		}
	}()
}
