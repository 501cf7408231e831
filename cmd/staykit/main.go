package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/staykit/staykit/internal/api"
	"github.com/staykit/staykit/internal/config"
	"github.com/staykit/staykit/internal/db"
	"github.com/staykit/staykit/internal/dispatch"
	"github.com/staykit/staykit/internal/engine"
	"github.com/staykit/staykit/internal/generate"
	"github.com/staykit/staykit/internal/repository"
	"github.com/staykit/staykit/internal/reservation"
	"github.com/staykit/staykit/internal/services"
	"github.com/staykit/staykit/internal/staykit/ports"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		serve()
		return
	}
	fmt.Println("staykit v0.1.0")
	fmt.Println("Usage: staykit serve")
}

func serve() {
	godotenv.Load()

	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres-backed when a database URL is configured,
	// in-memory otherwise.
	var ruleRepo repository.RuleRepository = repository.NewMemoryRuleRepository()
	var ledger repository.Ledger = repository.NewMemoryLedger()
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("database error", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			slog.Error("migration error", "err", err)
			os.Exit(1)
		}

		persistentRules := repository.NewPersistentRuleRepository(repository.NewMemoryRuleRepository(), database)
		if err := persistentRules.WarmCache(ctx); err != nil {
			slog.Warn("rule cache warmup failed", "err", err)
		}
		ruleRepo = persistentRules
		ledger = repository.NewPersistentLedger(repository.NewMemoryLedger(), database)
		slog.Info("using postgres-backed stores")
	} else {
		slog.Info("no database configured, using in-memory stores")
	}

	httpClient := &http.Client{Timeout: cfg.Engine.DispatchTimeout.Std()}
	gateway := &dispatch.Gateway{BaseURL: cfg.Gateway.URL, Token: cfg.Gateway.Token, Client: httpClient}

	senders := dispatch.NewRegistry()
	senders.Register(&dispatch.WebhookSender{Client: httpClient})
	senders.Register(&dispatch.MessageSender{Gateway: gateway})
	senders.Register(&dispatch.TaskSender{Gateway: gateway})
	senders.Register(&dispatch.StaffNotifySender{Gateway: gateway})

	templates := engine.NewTemplateStore(cfg.Templates)
	executor := engine.NewChainExecutor(senders, templates, cfg.Engine.DispatchTimeout.Std())

	var source ports.ReservationSource = reservation.NewMemorySource()
	if cfg.Reservations.URL != "" {
		source = &reservation.HTTPSource{BaseURL: cfg.Reservations.URL, Token: cfg.Reservations.Token, Client: httpClient}
	} else {
		slog.Warn("no reservation source configured, time-based rules see no stays")
	}

	runner := services.NewRunner(ruleRepo, ledger, executor, source)
	retries := services.NewRetryController(ruleRepo, ledger, runner)
	runner.SetRetryController(retries)

	evaluator := services.NewTimeEvaluator(ruleRepo, source, ledger, runner, loc, services.EvaluatorConfig{
		Lookback:      cfg.Engine.Lookback.Std(),
		Bucket:        services.BucketGranularity(cfg.Engine.Bucket),
		MaxConcurrent: cfg.Engine.MaxConcurrent,
	})
	if err := evaluator.Start(); err != nil {
		slog.Error("evaluator error", "err", err)
		os.Exit(1)
	}
	defer evaluator.Stop()

	bus := engine.NewBus()
	services.NewEventService(ruleRepo, ledger, runner).Start(bus)

	ruleSvc := services.NewRuleService(ruleRepo, templates, retries)
	historySvc := services.NewHistoryService(ledger)

	var generator ports.DraftGenerator
	if cfg.Provider.APIKey != "" {
		generator = generate.New(cfg.Provider.APIKey, cfg.Provider.URL, cfg.Provider.Model, templates)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.NewServer(ruleSvc, historySvc, generator, bus).Handler(),
	}

	go func() {
		slog.Info("starting staykit server", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "err", err)
	}
}
