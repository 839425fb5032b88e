package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/kakehashi-app/kakehashi-backend/internal/adapters/cache"
	"github.com/kakehashi-app/kakehashi-backend/internal/adapters/database"
	"github.com/kakehashi-app/kakehashi-backend/internal/adapters/events"
	"github.com/kakehashi-app/kakehashi-backend/internal/adapters/providers/geolocation"
	"github.com/kakehashi-app/kakehashi-backend/internal/application/services"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	openaiclient "github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/clients/openai"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/clients/postgres"
	redisclient "github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/clients/redis"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/observability"
	"github.com/kakehashi-app/kakehashi-backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)
	logger := observability.GetLogger()
	logger.Info().Msg("Starting enrichment worker...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional OpenTelemetry setup
	var metrics *observability.Metrics
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("OpenTelemetry setup failed, continuing without tracing")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Warn().Err(err).Msg("OpenTelemetry shutdown failed")
				}
			}()
		}
		metrics, err = observability.InitMetrics()
		if err != nil {
			logger.Warn().Err(err).Msg("Metrics initialization failed, continuing without metrics")
		}
	}

	// Infrastructure clients
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	redisClient, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Redis client")
	}
	defer redisClient.Close()

	// Adapters
	messageRepo := database.NewMessageAdapter(pgClient)
	enrichmentRepo := database.NewEnrichmentAdapter(pgClient)
	conversationRepo := database.NewConversationAdapter(pgClient)
	profileRepo := database.NewProfileAdapter(pgClient)

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	redisCache := cache.NewRedisAdapter(redisClient)
	translationCache := cache.NewTranslationCache()

	var geoProvider providers.GeolocationProvider
	if cfg.Geolocation.Provider == "google" && cfg.Geolocation.APIKey != "" {
		geoProvider = geolocation.NewGoogleGeolocationProvider(cfg.Geolocation.APIKey, redisCache)
		logger.Info().Msg("Using Google geolocation provider")
	} else {
		geoProvider = geolocation.NewMockGeolocationProvider()
		logger.Info().Msg("Using mock geolocation provider")
	}

	languageModel := openaiclient.NewClient(&cfg.OpenAI)

	// Services
	translator := services.NewTranslationService(languageModel, translationCache, metrics)
	facilitySearch := services.NewFacilitySearchService(geoProvider, metrics)
	consultation := services.NewConsultationService(
		languageModel, translator, facilitySearch,
		conversationRepo, messageRepo, profileRepo,
		eventBus, metrics, cfg.Chat.OperatingLanguage,
	)
	suggestions := services.NewSuggestionService(languageModel, translator)
	segmentation := services.NewSegmentationService(languageModel, messageRepo, conversationRepo)
	enricher := services.NewEnrichmentService(
		translator, suggestions, consultation, segmentation,
		languageModel, messageRepo, enrichmentRepo, profileRepo,
		eventBus, metrics, cfg.Chat.OperatingLanguage, cfg.Chat.HistoryWindow,
	)

	// Consume persisted-message notifications and dispatch enrichment
	inbox := redisClient.Client().Subscribe(ctx, cfg.Chat.InboxChannel)
	defer inbox.Close()

	logger.Info().
		Str("channel", cfg.Chat.InboxChannel).
		Msg("Enrichment worker listening for persisted messages")

	inboxCh := inbox.Channel()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Enrichment worker shutting down...")
			return
		case payload, ok := <-inboxCh:
			if !ok {
				logger.Info().Msg("Inbox channel closed, shutting down")
				return
			}
			var msg entities.Message
			if err := json.Unmarshal([]byte(payload.Payload), &msg); err != nil {
				logger.Error().Err(err).Msg("Failed to decode inbox payload, skipping")
				continue
			}
			if msg.ID == "" || msg.ConversationID == "" {
				logger.Warn().Msg("Inbox payload missing ids, skipping")
				continue
			}
			enricher.EnrichAsync(&msg)
		}
	}
}
