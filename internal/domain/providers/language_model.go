package providers

import (
	"context"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
)

// ChatTurn is one prior conversation turn handed to a generation call
type ChatTurn struct {
	Role SenderRoleLabel
	Text string
}

// SenderRoleLabel mirrors the conversation role for prompt construction
type SenderRoleLabel string

const (
	TurnWorker  SenderRoleLabel = "worker"
	TurnManager SenderRoleLabel = "manager"
)

// TranslationRequest asks for a translation of Text
type TranslationRequest struct {
	Text       string
	SourceLang string
	TargetLang string
}

// TranslationResult is the outcome of a translate call. Fallback marks a
// result produced without a provider call (echoed original).
type TranslationResult struct {
	Text     string
	Fallback bool
	Provider string
	Model    string
}

// SuggestionGenerationRequest asks for tone-labeled reply drafts
type SuggestionGenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Language     string
}

// SuggestionGenerationResult carries the raw tone-labeled lines; parsing
// into suggestions is the caller's concern.
type SuggestionGenerationResult struct {
	Raw      string
	Fallback bool
	Provider string
	Model    string
}

// HealthIntentRequest asks whether the latest message is health-related
type HealthIntentRequest struct {
	Text     string
	Language string
	History  []ChatTurn
}

// ConsultationStage identifies which classification a consultation
// analysis call should perform.
type ConsultationStage string

const (
	StageIntent   ConsultationStage = "intent"
	StageSchedule ConsultationStage = "schedule"
)

// ConsultationAnalysisRequest classifies a reply inside the consultation flow
type ConsultationAnalysisRequest struct {
	Stage    ConsultationStage
	Reply    string
	Language string
	History  []ChatTurn
}

// SegmentationRequest asks for a topic segmentation of a message window
type SegmentationRequest struct {
	Messages []ChatTurn
	Language string
}

// SegmentSpan is one proposed topic segment over the message window
type SegmentSpan struct {
	Topic      string `json:"topic"`
	Summary    string `json:"summary"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// SegmentationResult is the outcome of a segmentation call
type SegmentationResult struct {
	Segments []SegmentSpan
	Fallback bool
}

// ImageAnalysisRequest asks for a description of an attached image
type ImageAnalysisRequest struct {
	ImageURL string
	Caption  string
	Language string
}

// LanguageModel abstracts generation calls per capability. Implementations
// never return an error to the caller: an unconfigured or failing provider
// yields a labeled fallback result instead.
type LanguageModel interface {
	Translate(ctx context.Context, req TranslationRequest) TranslationResult
	SuggestReplies(ctx context.Context, req SuggestionGenerationRequest) SuggestionGenerationResult
	AnalyzeHealthIntent(ctx context.Context, req HealthIntentRequest) *entities.HealthAnalysis
	AnalyzeHealthConsultation(ctx context.Context, req ConsultationAnalysisRequest) *entities.ConsultationAnalysis
	SegmentConversation(ctx context.Context, req SegmentationRequest) SegmentationResult
	AnalyzeImage(ctx context.Context, req ImageAnalysisRequest) *entities.ImageAnalysis
}
