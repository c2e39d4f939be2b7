// ABOUTME: Terminal client for campus marketplace chats: sidebar of conversations,
// ABOUTME: live message pane over the realtime channel, and a deep link into a listing.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/campusmarket/campus-chat/internal/api"
	"github.com/campusmarket/campus-chat/internal/chat"
	"github.com/campusmarket/campus-chat/internal/config"
	"github.com/campusmarket/campus-chat/internal/logging"
	"github.com/campusmarket/campus-chat/internal/realtime"
	"github.com/campusmarket/campus-chat/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/campus-chat/config.yaml)")
	token := flag.String("token", "", "access token (overrides config and CAMPUS_TOKEN)")
	listingID := flag.Int64("listing", 0, "open the conversation for this listing, creating it if needed")
	flag.Parse()

	if err := run(*configPath, *token, *listingID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, tokenFlag string, listingID int64) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	explicit := tokenFlag
	if explicit == "" {
		explicit = cfg.Auth.Token
	}
	token, err := session.LoadToken(explicit, cfg.Auth.TokenFile)
	if err != nil {
		return fmt.Errorf("no access token: %w (run fake-backend and export CAMPUS_TOKEN)", err)
	}
	sess, err := session.FromToken(token)
	if err != nil {
		return fmt.Errorf("parsing access token: %w", err)
	}
	logger.Info("session ready", "user_id", sess.UserID, "username", sess.Username)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := api.New(cfg.API.BaseURL, sess, nil)
	channel := realtime.NewChannel(cfg.Realtime.URL, sess, logger)
	dir := chat.NewDirectory(client, sess, logger)
	view := chat.NewView(dir, client, channel, sess, logger)
	defer view.Close()

	dir.Refresh(ctx)

	// Deep link: -listing opens (or creates) that listing's conversation
	// before the first frame renders.
	var deepLink int64
	if listingID != 0 {
		conv, err := dir.Ensure(ctx, listingID)
		if err != nil {
			return fmt.Errorf("opening conversation for listing %d: %w", listingID, err)
		}
		deepLink = conv.ID
	}

	program := tea.NewProgram(newModel(ctx, view, sess, deepLink), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// setupLogging sends logs to the configured file, never to the terminal the
// program is drawing on.
func setupLogging(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.Logging.File == "" {
		return logging.New(io.Discard, cfg.Logging.Level, cfg.Logging.Format), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := logging.New(f, cfg.Logging.Level, cfg.Logging.Format).With("component", "campus-tui")
	return logger, func() { f.Close() }, nil
}
