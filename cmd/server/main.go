package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ipdr-dashboard/internal/config"
	"ipdr-dashboard/internal/notify"
	"ipdr-dashboard/internal/repository"
	"ipdr-dashboard/internal/server"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewDB(cfg.Database.Type, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []server.Option

	// Telegram bot for anomaly notifications (optional)
	if cfg.Notifications.Enabled {
		logRepo := repository.NewIPDRLogRepository(db, logger)
		bot, err := notify.NewBot(cfg.Notifications.TelegramBotToken, cfg.Notifications.ChatID, logRepo, logger)
		if err != nil {
			logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		} else {
			opts = append(opts, server.WithNotifier(bot))
			go func() {
				if err := bot.Start(ctx); err != nil {
					logger.Error("Telegram bot failed", zap.Error(err))
				}
			}()
		}
	}

	srv := server.NewServer(db, cfg, logger, opts...)
	if err := srv.Run(ctx, ":"+cfg.Server.Port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}

	logger.Info("Application stopped.")
}
