package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"abstkit/adapters/morph"
	"abstkit/adapters/store"
	"abstkit/adapters/tokens"
	"abstkit/app"
	"abstkit/internal"
	"abstkit/internal/api"
	"abstkit/internal/config"
	"abstkit/internal/usage"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer, err := morph.New(cfg.Morph.Dictionary)
	if err != nil {
		log.Fatalf("Failed to load morphological dictionary: %v", err)
	}
	counter, err := tokens.NewCounter(tokens.DefaultEncoding)
	if err != nil {
		log.Fatalf("Failed to load tokenizer: %v", err)
	}

	deps := api.Deps{
		Morph:   analyzer,
		Counter: counter,
		Ledger:  app.NewLedger(cfg.Batch.LedgerPath),
	}

	db, err := store.OpenAndMigrate(ctx, cfg.Database.URL)
	if err != nil {
		internal.DefaultLogger.Warn("[Server] job store unavailable, serving ledger only: %v", err)
	} else {
		defer db.Close()
		deps.Jobs = store.NewJobRepository(db)
		deps.Usage = usage.NewService(store.NewLLMUsageRepository(db))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewServer(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		internal.DefaultLogger.Info("[Server] listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	internal.DefaultLogger.Info("[Server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
