package services

import (
	"context"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/repositories"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/observability"
)

// segmentationWindow bounds how many recent messages one regeneration
// considers.
const segmentationWindow = 50

// SegmentationService regenerates a conversation's derived topic segments
// after every message. Segments are non-authoritative and fully rebuilt
// (delete then recreate) on each run; failures never affect enrichment.
type SegmentationService struct {
	model         providers.LanguageModel
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
}

// NewSegmentationService creates a new segmentation service
func NewSegmentationService(model providers.LanguageModel, messages repositories.MessageRepository, conversations repositories.ConversationRepository) *SegmentationService {
	return &SegmentationService{
		model:         model,
		messages:      messages,
		conversations: conversations,
	}
}

// Regenerate rebuilds the conversation's segments. Out-of-range segment
// indices are clamped per item; irrecoverable spans are skipped rather than
// aborting the batch.
func (s *SegmentationService) Regenerate(ctx context.Context, conversationID string) error {
	logger := observability.LoggerFromContext(ctx)

	history, err := s.messages.ListRecent(ctx, conversationID, segmentationWindow)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}

	turns := make([]providers.ChatTurn, 0, len(history))
	language := ""
	for _, m := range history {
		turns = append(turns, providers.ChatTurn{
			Role: providers.SenderRoleLabel(m.SenderRole),
			Text: m.Body,
		})
		if language == "" && m.Language != "" {
			language = m.Language
		}
	}

	result := s.model.SegmentConversation(ctx, providers.SegmentationRequest{
		Messages: turns,
		Language: language,
	})
	if result.Fallback {
		// No provider verdict; keep whatever segments already exist.
		return nil
	}

	segments := make([]*entities.ConversationSegment, 0, len(result.Segments))
	for _, span := range result.Segments {
		start, end := span.StartIndex, span.EndIndex
		if start < 0 {
			start = 0
		}
		if end >= len(history) {
			end = len(history) - 1
		}
		if start > end {
			logger.Warn().
				Str("conversation_id", conversationID).
				Int("start_index", span.StartIndex).
				Int("end_index", span.EndIndex).
				Msg("skipping segment with irrecoverable indices")
			continue
		}
		segments = append(segments, &entities.ConversationSegment{
			ConversationID: conversationID,
			Topic:          span.Topic,
			Summary:        span.Summary,
			StartIndex:     start,
			EndIndex:       end,
		})
	}

	return s.conversations.ReplaceSegments(ctx, conversationID, segments)
}
