package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"snapbot/internal/downloader"
	"snapbot/pkg/auth"
	"snapbot/pkg/bot"
	"snapbot/pkg/config"
	"snapbot/pkg/delivery"
	"snapbot/pkg/logger"
	"snapbot/pkg/ratelimit"
	"snapbot/pkg/server"
	"snapbot/pkg/snapchat"
	"snapbot/pkg/storage"
)

var (
	runToken      string
	runTempDir    string
	runListen     string
	runConcurrent int
	runNoServer   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot and the keep-alive server",
	Long: `Start polling Telegram for updates and serve the keep-alive endpoint.

The bot token is resolved from, in order:
  - the --token flag
  - SNAPBOT_BOT_TOKEN or BOT_TOKEN
  - the config file
  - the token stored with 'snapbot auth set'

SIGINT or SIGTERM stops polling, waits for in-flight deliveries and removes
any temporary files they left behind.`,
	Example: `  # Run with a stored token
  snapbot run

  # Run without the keep-alive server
  snapbot run --no-server`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runToken, "token", "", "Telegram bot token")
	runCmd.Flags().StringVar(&runTempDir, "temp-dir", "", "directory for temporary downloads")
	runCmd.Flags().StringVar(&runListen, "listen", "", "keep-alive server listen address")
	runCmd.Flags().IntVar(&runConcurrent, "concurrent", 0, "maximum simultaneous downloads")
	runCmd.Flags().BoolVar(&runNoServer, "no-server", false, "disable the keep-alive server")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"token":      runToken,
		"temp-dir":   runTempDir,
		"listen":     runListen,
		"concurrent": runConcurrent,
		"no-server":  runNoServer,
	})
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	token, err := resolveToken(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewManager(cfg.Download.TempDir)
	if err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	api.Debug = cfg.Telegram.Debug

	pages := snapchat.NewClient(cfg.Source, log)
	fetcher := downloader.NewFetcher(cfg.Download, cfg.Source.UserAgent, store, log)
	service := delivery.NewService(pages, fetcher, cfg.Download, log)
	limiter := ratelimit.NewUserLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Window)
	b := bot.New(api, service, limiter, store, cfg, log)

	logger.LogComponentStart("snapbot", map[string]interface{}{
		"bot_username":        api.Self.UserName,
		"temp_dir":            store.Dir(),
		"requests_per_minute": cfg.RateLimit.RequestsPerMinute,
		"server_enabled":      cfg.Server.Enabled,
	})

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, log)
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error { return b.Run(gctx) })

	err = g.Wait()
	logger.LogComponentStop("snapbot", "shutdown")
	return err
}

// resolveToken falls back to the credential store when no other source
// supplied a token.
func resolveToken(cfg *config.Config) (string, error) {
	if cfg.Telegram.BotToken != "" {
		return cfg.Telegram.BotToken, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return "", fmt.Errorf("failed to initialize token store: %w", err)
	}
	token, err := manager.Retrieve(auth.DefaultProfile)
	if err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			return "", errors.New("no bot token configured: run 'snapbot auth set' or set SNAPBOT_BOT_TOKEN")
		}
		return "", err
	}
	return token.Value, nil
}
