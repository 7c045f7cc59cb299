package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/config"
	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/database"
	appHttp "github.com/Abhishek001-1/WalnutFolks-FSE/internal/http"
	healthHandler "github.com/Abhishek001-1/WalnutFolks-FSE/internal/http/health"
	txHandler "github.com/Abhishek001-1/WalnutFolks-FSE/internal/http/transaction"
	webhookHandler "github.com/Abhishek001-1/WalnutFolks-FSE/internal/http/webhook"
	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/transaction"
	txStore "github.com/Abhishek001-1/WalnutFolks-FSE/internal/transaction/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := txStore.New(db)

	// An unreachable store at startup is fatal. Running without the
	// uniqueness constraint would silently break idempotency.
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	processor := transaction.NewProcessor(store, cfg.Processing.Delay, slog.Default())
	defer processor.Close()

	if cfg.Processing.Recover {
		if err := processor.Recover(ctx); err != nil {
			slog.Error("failed to recover stalled transactions", "error", err)
		}
	}

	transactionService := transaction.NewService(store, processor)

	var (
		webhooksH     = webhookHandler.NewHandler(transactionService)
		transactionsH = txHandler.NewHandler(transactionService)
		healthH       = healthHandler.NewHandler()
	)

	router := appHttp.New(webhooksH, transactionsH, healthH)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "port", port)

	if err := http.ListenAndServe(port, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
