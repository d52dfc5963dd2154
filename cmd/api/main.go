// Command api wires every collaborator spec §1's pipeline depends on and
// serves the thin HTTP control plane. Grounded on the teacher's
// cmd/api/main.go: JSON-formatted logrus, viper-backed config load, a
// wiring sequence of database → collaborators → scheduler.Start() → HTTP
// server in a goroutine, then a signal-triggered graceful shutdown that
// stops the scheduler and waits for in-flight work before closing the HTTP
// server and mail connections.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"smart-mail-relay-go/internal/config"
	"smart-mail-relay-go/internal/database"
	"smart-mail-relay-go/internal/handler"
	"smart-mail-relay-go/internal/llm"
	"smart-mail-relay-go/internal/mail"
	"smart-mail-relay-go/internal/metrics"
	"smart-mail-relay-go/internal/orchestrator"
	"smart-mail-relay-go/internal/pipeline"
	"smart-mail-relay-go/internal/progress"
	"smart-mail-relay-go/internal/repository"
	"smart-mail-relay-go/internal/router"
	"smart-mail-relay-go/internal/scheduler"
	"smart-mail-relay-go/internal/template"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)
	logrus.Info("starting mail pipeline service")

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logrus.Fatalf("failed to connect to database: %v", err)
	}

	m := metrics.New()
	repo := repository.New(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accounts, err := mail.NewConfigAccountProvider(ctx, accountSpecs(cfg.IMAP.Accounts))
	if err != nil {
		logrus.Fatalf("failed to initialize mail accounts: %v", err)
	}
	pool := mail.NewPool(accounts, m, cfg.IMAP.ConnectTimeout, cfg.IMAP.HealthFreshness, cfg.IMAP.AcquireTimeout)
	fetcher := mail.NewIMAPFetcher(pool, cfg.IMAP.FetchTimeout, m)

	catalog := template.NewCatalog(repo, nil, cfg.Embedding.MinConfidence)
	if err := catalog.Refresh(ctx); err != nil {
		logrus.Fatalf("failed to load prompt templates: %v", err)
	}

	llmClient, err := llm.NewBedrockClient(ctx, cfg.LLM.BedrockRegion)
	if err != nil {
		logrus.Fatalf("failed to initialize LLM client: %v", err)
	}

	var reporter *progress.Reporter
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		reporter = progress.NewReporter(progress.NewRedisSink(redisClient))
	} else {
		reporter = progress.NewReporter(progress.NoopSink{})
	}

	p := pipeline.New(repo, catalog, llmClient, m, cfg.LLM.DefaultModel, cfg.LLM.Temperature, cfg.LLM.PerMessageTimeout, cfg.LLM.MaxConcurrency)
	orch := orchestrator.New(repo, fetcher, p, reporter, m, cfg.Execution.MaxMessagesPerRun)
	dispatcher := scheduler.New(repo, orch, m, cfg.Scheduler.TickInterval, cfg.Scheduler.StaleLockGrace)

	h := handler.New(db, repo, dispatcher, m)
	r := router.Setup(h, true)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := dispatcher.Start(); err != nil {
		logrus.Fatalf("failed to start dispatcher: %v", err)
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	dispatcher.Stop()
	dispatcher.Wait()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown error")
	}
	pool.CloseAll()

	logrus.Info("stopped gracefully")
}

func accountSpecs(accounts []config.IMAPAccountConfig) []mail.AccountSpec {
	specs := make([]mail.AccountSpec, len(accounts))
	for i, a := range accounts {
		specs[i] = mail.AccountSpec{
			ID:                 a.ID,
			Host:               a.Host,
			Port:               a.Port,
			Username:           a.Username,
			AuthMethod:         a.AuthMethod,
			Password:           a.Password,
			OAuth2ClientID:     a.OAuth2ClientID,
			OAuth2ClientSecret: a.OAuth2ClientSecret,
			OAuth2RefreshToken: a.OAuth2RefreshToken,
			OAuth2TokenURL:     a.OAuth2TokenURL,
		}
	}
	return specs
}
