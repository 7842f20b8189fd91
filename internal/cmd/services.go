package main

import (
	"database/sql"

	"github.com/manadraft/league/internal/budget"
	"github.com/manadraft/league/internal/cardpool"
	"github.com/manadraft/league/internal/dbconfig"
	"github.com/manadraft/league/internal/draft"
	"github.com/manadraft/league/internal/draft/gateway"
	"github.com/manadraft/league/internal/draft/outbox"
	"github.com/manadraft/league/internal/httpapi"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Hub          *gateway.Hub
	DraftApp     *draft.App
	Orchestrator *draft.Orchestrator
	Handlers     *httpapi.Handlers
	Gateway      *gateway.Service
	Outbox       *outbox.Listener
}

func setupServices(database *sql.DB, dbCfg dbconfig.Config, cfg *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Orchestrator / HTTP layer

	hub := gateway.NewHub()

	sessionRepo := draft.NewRepository(database)
	poolRepo := cardpool.NewRepository(database)
	teamRepo := budget.NewRepository(database)

	committer := draft.NewCommitter(database, sessionRepo, poolRepo, teamRepo)
	draftApp := draft.NewApp(sessionRepo, committer, poolRepo, teamRepo, hub)

	strategy := draft.NewRecommenderStrategy(draftApp)
	orchestrator := draft.NewOrchestrator(draftApp, strategy, cfg.Draft.SchedulerBatchSize)

	handlers := httpapi.NewHandlers(draftApp, orchestrator, poolRepo, teamRepo)

	// Outbox relay: staged events flow to JetStream for the gateway's
	// websocket consumer.
	publisher, err := outbox.NewJetStreamPublisher(outbox.JetStreamConfig{
		URL:             cfg.NATS.URL,
		StreamName:      cfg.NATS.StreamName,
		SubjectPrefix:   cfg.NATS.SubjectPrefix,
		MaxReconnects:   -1,
		ReconnectWait:   outbox.DefaultJetStreamConfig().ReconnectWait,
		MaxAge:          outbox.DefaultJetStreamConfig().MaxAge,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: outbox.DefaultJetStreamConfig().DuplicateWindow,
	})
	if err != nil {
		return nil, err
	}

	listenerCfg := outbox.DefaultListenerConfig()
	listenerCfg.DatabaseURL = dbCfg.DSN()
	listenerCfg.NotifyChannel = cfg.Outbox.NotifyChannel
	listenerCfg.FallbackInterval = cfg.FallbackInterval()
	listenerCfg.BatchSize = cfg.Outbox.BatchSize

	listener, err := outbox.NewListener(database, publisher, listenerCfg)
	if err != nil {
		return nil, err
	}

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.JetStreamConfig.URL = cfg.NATS.URL
	gatewayCfg.JetStreamConfig.StreamName = cfg.NATS.StreamName
	gatewayCfg.JetStreamConfig.SubjectFilter = cfg.NATS.SubjectPrefix + ".>"

	gatewayService, err := gateway.NewService(gatewayCfg, draftApp)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("services wired")

	return &Services{
		Hub:          hub,
		DraftApp:     draftApp,
		Orchestrator: orchestrator,
		Handlers:     handlers,
		Gateway:      gatewayService,
		Outbox:       listener,
	}, nil
}
