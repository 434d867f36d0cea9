package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/xaenox/memo-desk/internal/ai"
	"github.com/xaenox/memo-desk/internal/bot"
	"github.com/xaenox/memo-desk/internal/clipboard"
	"github.com/xaenox/memo-desk/internal/notebook"
	"github.com/xaenox/memo-desk/internal/rules"
	"github.com/xaenox/memo-desk/internal/storage"
	"github.com/xaenox/memo-desk/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	exportDir := flag.String("export", "", "write all notes to this vault directory and exit")
	importDir := flag.String("import", "", "import notes from this vault directory and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// Logger is not configured yet.
		zap.NewExample().Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	logger := newLogger(cfg.Log)
	defer logger.Sync()

	store := openStorage(cfg.Database, logger)
	defer store.Close()

	notes := notebook.New(store, newAI(cfg, logger), rules.NewMatcher(), notebook.Options{
		AutoAnalyze:      cfg.AI.Enabled,
		ClipboardHistory: cfg.Clipboard.MaxItems,
		ClipboardToNotes: cfg.Clipboard.SaveAsNote,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *exportDir != "" {
		n, err := notes.ExportVault(ctx, *exportDir)
		if err != nil {
			logger.Fatal("Export failed", zap.Error(err))
		}
		logger.Info("Export finished", zap.Int("notes", n))
		return
	}
	if *importDir != "" {
		n, err := notes.ImportVault(ctx, *importDir)
		if err != nil {
			logger.Fatal("Import failed", zap.Error(err))
		}
		logger.Info("Import finished", zap.Int("notes", n))
		return
	}

	var wg sync.WaitGroup

	if cfg.Clipboard.Enabled {
		if !clipboard.Supported() {
			logger.Warn("Clipboard capture enabled but no clipboard backend is available")
		} else {
			watcher, err := clipboard.NewWatcher(clipboard.SystemReader{}, cfg.Clipboard.PollInterval, cfg.Clipboard.Buffer, logger)
			if err != nil {
				logger.Fatal("Failed to create clipboard watcher", zap.Error(err))
			}
			watcher.Start()
			wg.Add(1)
			go func() {
				defer wg.Done()
				captureClipboard(ctx, watcher, notes, logger)
			}()
		}
	}

	if cfg.Telegram.Token != "" {
		b, err := bot.New(cfg.Telegram.Token, notes, cfg.Telegram.AllowedUserID, logger)
		if err != nil {
			logger.Fatal("Failed to create bot", zap.Error(err))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Start(ctx); err != nil {
				logger.Error("Bot error", zap.Error(err))
			}
		}()
	}

	logger.Info("MemoDesk running", zap.String("driver", cfg.Database.Driver))
	<-ctx.Done()
	logger.Info("Shutting down")
	wg.Wait()
}

func newLogger(cfg config.LogConfig) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openStorage(cfg config.DatabaseConfig, logger *zap.Logger) storage.Storage {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage()
	case config.DriverPostgres:
		logger.Info("Using PostgreSQL storage")
		store, err := storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
		return store
	default:
		logger.Info("Using SQLite storage", zap.String("path", cfg.Path))
		store, err := storage.OpenSQLite(cfg.Path, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
		return store
	}
}

// newAI returns nil when AI is disabled, the GPT service when a key is set,
// and the offline heuristics otherwise.
func newAI(cfg *config.Config, logger *zap.Logger) ai.Service {
	if !cfg.AI.Enabled {
		return nil
	}
	if cfg.OpenAI.APIKey == "" {
		logger.Info("No OpenAI key, using offline tagging")
		return ai.NewSimpleService(cfg.AI.MaxTags)
	}
	return ai.NewGPTService(ai.GPTConfig{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		MaxTags:     cfg.AI.MaxTags,
	}, logger)
}

func captureClipboard(ctx context.Context, watcher *clipboard.Watcher, notes *notebook.Service, logger *zap.Logger) {
	defer watcher.Stop()
	for {
		select {
		case <-ctx.Done():
			if n := watcher.Dropped(); n > 0 {
				logger.Warn("Clipboard events dropped", zap.Uint64("count", n))
			}
			return
		case ev, ok := <-watcher.C():
			if !ok {
				return
			}
			if _, err := notes.CaptureClipboard(ctx, ev); err != nil {
				logger.Error("Failed to capture clipboard",
					zap.Error(err),
					zap.String("type", string(ev.Type)))
			}
		}
	}
}
