package main

import (
	"context"

	"github.com/redis/go-redis/v9"

	"smart-mail-relay-go/internal/apperrors"
	"smart-mail-relay-go/internal/config"
	"smart-mail-relay-go/internal/llm"
	"smart-mail-relay-go/internal/mail"
	"smart-mail-relay-go/internal/orchestrator"
	"smart-mail-relay-go/internal/pipeline"
	"smart-mail-relay-go/internal/progress"
	"smart-mail-relay-go/internal/repository"
	"smart-mail-relay-go/internal/template"
)

// newDefaultOrchestrator builds the same collaborator graph cmd/api wires,
// so run-schedule exercises the identical pipeline a live dispatcher tick
// would — just triggered by hand instead of by cron.
func newDefaultOrchestrator(ctx context.Context, cfg *config.Config, repo repository.Repository) (*orchestrator.Orchestrator, func(), error) {
	accountSpecs := make([]mail.AccountSpec, len(cfg.IMAP.Accounts))
	for i, a := range cfg.IMAP.Accounts {
		accountSpecs[i] = mail.AccountSpec{
			ID: a.ID, Host: a.Host, Port: a.Port, Username: a.Username,
			AuthMethod: a.AuthMethod, Password: a.Password,
			OAuth2ClientID: a.OAuth2ClientID, OAuth2ClientSecret: a.OAuth2ClientSecret,
			OAuth2RefreshToken: a.OAuth2RefreshToken, OAuth2TokenURL: a.OAuth2TokenURL,
		}
	}
	accounts, err := mail.NewConfigAccountProvider(ctx, accountSpecs)
	if err != nil {
		return nil, nil, apperrors.New(apperrors.Fatal, "relayctl.wiring", err)
	}
	pool := mail.NewPool(accounts, nil, cfg.IMAP.ConnectTimeout, cfg.IMAP.HealthFreshness, cfg.IMAP.AcquireTimeout)
	fetcher := mail.NewIMAPFetcher(pool, cfg.IMAP.FetchTimeout, nil)

	catalog := template.NewCatalog(repo, nil, cfg.Embedding.MinConfidence)
	if err := catalog.Refresh(ctx); err != nil {
		return nil, nil, apperrors.New(apperrors.Fatal, "relayctl.wiring", err)
	}

	llmClient, err := llm.NewBedrockClient(ctx, cfg.LLM.BedrockRegion)
	if err != nil {
		return nil, nil, apperrors.New(apperrors.Fatal, "relayctl.wiring", err)
	}

	var reporter *progress.Reporter
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		reporter = progress.NewReporter(progress.NewRedisSink(redisClient))
	} else {
		reporter = progress.NewReporter(progress.NoopSink{})
	}

	p := pipeline.New(repo, catalog, llmClient, nil, cfg.LLM.DefaultModel, cfg.LLM.Temperature, cfg.LLM.PerMessageTimeout, cfg.LLM.MaxConcurrency)
	orch := orchestrator.New(repo, fetcher, p, reporter, nil, cfg.Execution.MaxMessagesPerRun)

	cleanup := func() { pool.CloseAll() }
	return orch, cleanup, nil
}
