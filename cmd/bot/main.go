package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillm/signal-bot/internal/config"
	"github.com/kirillm/signal-bot/internal/exchange"
	"github.com/kirillm/signal-bot/internal/notifier"
	"github.com/kirillm/signal-bot/internal/orchestrator"
	"github.com/kirillm/signal-bot/internal/storage"
	"github.com/kirillm/signal-bot/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)

	store, err := storage.NewPostgresStorage(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	bybit := exchange.NewBybitClient(
		cfg.Bybit.APIKey,
		cfg.Bybit.APISecret,
		cfg.Bybit.BaseURL,
		cfg.Bybit.RequestsSec,
	)

	tg, err := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger.Named("telegram"))
	if err != nil {
		logger.Warn("Telegram notifier disabled: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := orchestrator.New(cfg.Strategy, bybit, store, logger.Named("loop"), tg.NotifyFunc())
	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start orchestrator: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received")
	orch.Stop()
}
