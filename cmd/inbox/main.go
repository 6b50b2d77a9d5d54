package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/nhle/claims-inbox/internal/app"
	"github.com/nhle/claims-inbox/internal/credential"
	"github.com/nhle/claims-inbox/internal/gateway"
	"github.com/nhle/claims-inbox/internal/inbox"
	"github.com/nhle/claims-inbox/internal/metrics"
	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/internal/session"
	"github.com/nhle/claims-inbox/internal/store"
	appsync "github.com/nhle/claims-inbox/internal/sync"
	"github.com/nhle/claims-inbox/internal/theme"
	"github.com/nhle/claims-inbox/internal/toast"
	"github.com/nhle/claims-inbox/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "claims-inbox:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal.
	_ = godotenv.Load()

	configPath := model.DefaultConfigPath()
	if p := os.Getenv("INBOX_CONFIG"); p != "" {
		configPath = p
	}
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Trace.File != "" {
		stopTracing, err := newTracing(cfg.Trace.File)
		if err != nil {
			return err
		}
		defer stopTracing(logger)
	}

	metrics.Init()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	client := gateway.NewClient(cfg.API.BaseURL, cfg.APITimeout())

	engine := appsync.New(client, st, appsync.Options{
		PollInterval: cfg.PollInterval(),
		FetchTimeout: cfg.FetchTimeout(),
		Logger:       logger,
	})

	sess := session.New(client, credential.Keyring{}, logger)
	sess.OnChange(func(u *model.User) {
		if u == nil {
			engine.SetUser("")
			return
		}
		engine.SetUser(u.Name)
	})

	mgr := inbox.NewManager(client, st, engine, sess, inbox.Options{
		MarkAllRate: cfg.Inbox.MarkAllRate,
		BulkMarkAll: cfg.Inbox.BulkMarkAll,
		Logger:      logger,
	})

	var opener toast.Opener = toast.LogOpener{BaseURL: cfg.API.BaseURL, Logger: logger}
	if cfg.Toast.OpenURLs {
		opener = toast.BrowserOpener{BaseURL: cfg.API.BaseURL}
	}
	toasts := toast.NewQueue(toast.Options{
		Duration: cfg.ToastDuration(),
		MarkRead: func(ctx context.Context, id int64) error {
			return mgr.MarkAsRead(ctx, id).Err
		},
		Unread: mgr.IsUnread,
		Opener: opener,
		Logger: logger,
	})
	engine.OnNewUnread(func(ns []model.Notification) {
		toasts.Push(ns...)
	})

	if _, err := sess.Restore(); err != nil {
		logger.Warn("restoring session", "error", err)
	}

	theme.Apply(cfg.Display.Theme)

	p := tea.NewProgram(app.New(app.Deps{
		Store:      st,
		Engine:     engine,
		Inbox:      mgr,
		Session:    sess,
		Toasts:     toasts,
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger,
	}), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}

	engine.Stop()
	toasts.Close()
	return nil
}

// newLogger opens the log file so that log output never reaches the
// terminal the UI draws on.
func newLogger(cfg model.LogConfig) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}

// newTracing exports spans to path. The returned function flushes them and
// closes the file.
func newTracing(path string) (func(*slog.Logger), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}

	shutdown, err := tracing.Setup(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return func(logger *slog.Logger) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
		_ = f.Close()
	}, nil
}
