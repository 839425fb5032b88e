package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/repositories"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/observability"
)

// EnrichmentService orchestrates the per-message enrichment pipeline:
// translation, image analysis, health consultation dispatch, reply
// suggestions, and the final artifact write. Phases run sequentially and
// each carries its own error boundary: a phase failure aborts that phase
// only, never the pipeline or the caller.
type EnrichmentService struct {
	translator    *TranslationService
	suggestions   *SuggestionService
	consultation  *ConsultationService
	segmentation  *SegmentationService
	model         providers.LanguageModel
	messages      repositories.MessageRepository
	enrichments   repositories.EnrichmentRepository
	profiles      repositories.ProfileRepository
	bus           providers.EventBus
	metrics       *observability.Metrics
	operatingLang string
	historyWindow int
}

// NewEnrichmentService creates a new enrichment orchestrator
func NewEnrichmentService(
	translator *TranslationService,
	suggestions *SuggestionService,
	consultation *ConsultationService,
	segmentation *SegmentationService,
	model providers.LanguageModel,
	messages repositories.MessageRepository,
	enrichments repositories.EnrichmentRepository,
	profiles repositories.ProfileRepository,
	bus providers.EventBus,
	metrics *observability.Metrics,
	operatingLang string,
	historyWindow int,
) *EnrichmentService {
	if operatingLang == "" {
		operatingLang = "ja"
	}
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &EnrichmentService{
		translator:    translator,
		suggestions:   suggestions,
		consultation:  consultation,
		segmentation:  segmentation,
		model:         model,
		messages:      messages,
		enrichments:   enrichments,
		profiles:      profiles,
		bus:           bus,
		metrics:       metrics,
		operatingLang: operatingLang,
		historyWindow: historyWindow,
	}
}

// EnrichAsync runs the pipeline as a detached background task with its own
// panic boundary. The message-send response path never waits on it.
func (s *EnrichmentService) EnrichAsync(msg *entities.Message) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				observability.GetLogger().Error().
					Str("message_id", msg.ID).
					Str("conversation_id", msg.ConversationID).
					Interface("panic", r).
					Msg("enrichment task panicked")
			}
		}()
		s.Enrich(context.Background(), msg)
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				observability.GetLogger().Error().
					Str("conversation_id", msg.ConversationID).
					Interface("panic", r).
					Msg("segmentation task panicked")
			}
		}()
		if err := s.segmentation.Regenerate(context.Background(), msg.ConversationID); err != nil {
			observability.GetLogger().Warn().
				Str("conversation_id", msg.ConversationID).
				Err(err).
				Msg("segment regeneration failed")
		}
	}()
}

// Enrich runs the five pipeline phases for one persisted message
func (s *EnrichmentService) Enrich(ctx context.Context, msg *entities.Message) {
	if msg == nil || msg.SenderRole == entities.RoleSystem {
		return
	}

	ctx, span := observability.StartSpan(ctx, "enrichment.pipeline")
	defer span.End()
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("conversation.id", msg.ConversationID),
	)

	logger := observability.LoggerFromContext(ctx)
	if s.metrics != nil {
		s.metrics.EnrichmentCount.Add(ctx, 1)
	}

	worker := s.loadWorkerProfile(ctx, msg.ConversationID)
	group := s.loadGroupProfile(ctx, msg.ConversationID)

	operatingLang := s.operatingLang
	if group != nil && group.Language != "" {
		operatingLang = group.Language
	}
	workerLocale := ""
	if worker != nil {
		workerLocale = worker.Locale
	}

	artifact := s.loadOrNewArtifact(ctx, msg.ID)

	// Phase 1: translate and publish the partial artifact right away so
	// subscribers see the translation before the slower phases finish.
	targetLang := s.translationTarget(msg, operatingLang, workerLocale)
	s.runPhase(ctx, msg, "translate", func() error {
		if msg.Body == "" || targetLang == "" || targetLang == msg.Language {
			return nil
		}
		result := s.translator.Translate(ctx, msg.Body, msg.Language, targetLang)
		if result.Fallback {
			return nil
		}
		text := result.Text
		artifact.Translation = &text
		artifact.TranslationLang = targetLang
		artifact.Extra.Provider = result.Provider
		artifact.Extra.Model = result.Model
		if err := s.enrichments.Upsert(ctx, artifact); err != nil {
			return err
		}
		s.publish(ctx, msg.ConversationID, entities.ChatEventMessageUpdated, artifact)
		return nil
	})

	// Phase 2: image analysis feeds the suggestion phase and the artifact.
	var imageAnalysis *entities.ImageAnalysis
	s.runPhase(ctx, msg, "image_analysis", func() error {
		if msg.Type != entities.MessageTypeImage || msg.ContentURL == "" {
			return nil
		}
		analysis := s.model.AnalyzeImage(ctx, providers.ImageAnalysisRequest{
			ImageURL: msg.ContentURL,
			Caption:  msg.Body,
			Language: operatingLang,
		})
		if analysis != nil && !analysis.Fallback {
			imageAnalysis = analysis
			artifact.Extra.ImageAnalysis = analysis
		}
		return nil
	})

	history := s.loadHistory(ctx, msg)

	// Phase 3: health analysis and consultation dispatch, worker messages
	// only. The consultation flow reports whether it owns this turn.
	flowOwnsTurn := false
	s.runPhase(ctx, msg, "health_analysis", func() error {
		if msg.SenderRole != entities.RoleWorker {
			return nil
		}
		owned, analysis := s.consultation.HandleMessage(ctx, msg, toChatTurns(history))
		flowOwnsTurn = owned
		if analysis != nil {
			artifact.Extra.HealthAnalysis = analysis
		}
		artifact.Extra.ConsultationInProgress = owned
		return nil
	})

	// Phase 4: suggestions, skipped entirely when the consultation flow
	// owns the reply this turn. Image-based drafts take priority.
	s.runPhase(ctx, msg, "suggestions", func() error {
		if flowOwnsTurn {
			logger.Debug().
				Str("message_id", msg.ID).
				Msg("consultation flow owns this turn, skipping suggestions")
			return nil
		}
		req := SuggestionRequest{
			History:     append(history, msg),
			ForRole:     counterpartRole(msg.SenderRole),
			Worker:      worker,
			Group:       group,
			Language:    operatingLang,
			TranslateTo: workerLocale,
		}
		if imageAnalysis != nil {
			artifact.Suggestions = s.suggestions.GenerateFromImage(ctx, imageAnalysis, req)
		} else {
			artifact.Suggestions = s.suggestions.Generate(ctx, req)
		}
		return nil
	})

	// Phase 5: final artifact write.
	s.runPhase(ctx, msg, "final_write", func() error {
		if err := s.enrichments.Upsert(ctx, artifact); err != nil {
			return err
		}
		s.publish(ctx, msg.ConversationID, entities.ChatEventMessageUpdated, artifact)
		return nil
	})
}

// runPhase isolates one pipeline phase: duration and failure are recorded,
// the error is logged, and the pipeline moves on.
func (s *EnrichmentService) runPhase(ctx context.Context, msg *entities.Message, phase string, fn func() error) {
	start := time.Now()
	err := fn()
	observability.RecordPhaseMetric(ctx, s.metrics, phase, time.Since(start), err)
	if err != nil {
		observability.LoggerFromContext(ctx).Error().
			Str("message_id", msg.ID).
			Str("conversation_id", msg.ConversationID).
			Str("phase", phase).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("enrichment phase failed")
	}
}

// translationTarget picks the translation language: manager messages are
// translated for the worker, worker messages for the manager side.
func (s *EnrichmentService) translationTarget(msg *entities.Message, operatingLang, workerLocale string) string {
	if msg.SenderRole == entities.RoleManager {
		return workerLocale
	}
	return operatingLang
}

func (s *EnrichmentService) loadOrNewArtifact(ctx context.Context, messageID string) *entities.EnrichmentArtifact {
	artifact, err := s.enrichments.GetByMessageID(ctx, messageID)
	if err != nil || artifact == nil {
		return &entities.EnrichmentArtifact{MessageID: messageID}
	}
	return artifact
}

func (s *EnrichmentService) loadWorkerProfile(ctx context.Context, conversationID string) *entities.WorkerProfile {
	worker, err := s.profiles.GetWorkerProfile(ctx, conversationID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Str("conversation_id", conversationID).
			Err(err).
			Msg("worker profile unavailable")
		return nil
	}
	return worker
}

func (s *EnrichmentService) loadGroupProfile(ctx context.Context, conversationID string) *entities.GroupProfile {
	group, err := s.profiles.GetGroupProfile(ctx, conversationID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Str("conversation_id", conversationID).
			Err(err).
			Msg("group profile unavailable")
		return nil
	}
	return group
}

// loadHistory returns the recent window up to but not including msg. The
// inbound message may or may not be visible in the store yet; it is
// filtered out so each consumer hands it to the model exactly once: the
// consultation flow passes it as the reply, the suggestion phase appends
// it to the window.
func (s *EnrichmentService) loadHistory(ctx context.Context, msg *entities.Message) []*entities.Message {
	history, err := s.messages.ListRecent(ctx, msg.ConversationID, s.historyWindow)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Str("conversation_id", msg.ConversationID).
			Err(err).
			Msg("conversation history unavailable")
		return nil
	}
	filtered := history[:0]
	for _, m := range history {
		if m.ID != msg.ID {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func (s *EnrichmentService) publish(ctx context.Context, conversationID string, eventType entities.ChatEventType, payload interface{}) {
	if s.bus == nil {
		return
	}
	event := entities.NewChatEvent(conversationID, eventType, payload)
	if err := s.bus.Publish(ctx, providers.ConversationChannel(conversationID), event); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Str("conversation_id", conversationID).
			Str("event_type", string(eventType)).
			Err(err).
			Msg("failed to publish event")
	}
}

func counterpartRole(role entities.SenderRole) entities.SenderRole {
	if role == entities.RoleWorker {
		return entities.RoleManager
	}
	return entities.RoleWorker
}

func toChatTurns(history []*entities.Message) []providers.ChatTurn {
	turns := make([]providers.ChatTurn, 0, len(history))
	for _, m := range history {
		if m.SenderRole == entities.RoleSystem {
			continue
		}
		turns = append(turns, providers.ChatTurn{
			Role: providers.SenderRoleLabel(m.SenderRole),
			Text: m.Body,
		})
	}
	return turns
}
