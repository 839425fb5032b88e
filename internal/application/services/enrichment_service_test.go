package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
)

type enrichmentFixture struct {
	service     *EnrichmentService
	model       *fakeLanguageModel
	geo         *fakeGeoProvider
	messages    *fakeMessageRepo
	enrichments *fakeEnrichmentRepo
	convs       *fakeConversationRepo
	profiles    *fakeProfileRepo
	bus         *fakeEventBus
}

func newEnrichmentFixture() *enrichmentFixture {
	model := &fakeLanguageModel{}
	geo := &fakeGeoProvider{}
	messages := &fakeMessageRepo{}
	enrichments := &fakeEnrichmentRepo{}
	convs := &fakeConversationRepo{}
	profiles := &fakeProfileRepo{
		worker: &entities.WorkerProfile{ID: "w-1", Name: "Nguyen", Locale: "vi", Address: "東京都千代田区1-1"},
		group:  &entities.GroupProfile{ID: "g-1", Name: "さくら工業", Language: "ja"},
	}
	bus := &fakeEventBus{}

	translator := NewTranslationService(model, nil, nil)
	facilitySearch := NewFacilitySearchService(geo, nil)
	consultation := NewConsultationService(model, translator, facilitySearch, convs, messages, profiles, bus, nil, "ja")
	suggestions := NewSuggestionService(model, translator)
	segmentation := NewSegmentationService(model, messages, convs)
	service := NewEnrichmentService(
		translator, suggestions, consultation, segmentation,
		model, messages, enrichments, profiles, bus, nil, "ja", 10,
	)

	return &enrichmentFixture{
		service:     service,
		model:       model,
		geo:         geo,
		messages:    messages,
		enrichments: enrichments,
		convs:       convs,
		profiles:    profiles,
		bus:         bus,
	}
}

func inboundMessage(role entities.SenderRole, body, language string) *entities.Message {
	return &entities.Message{
		ID:             "m-new",
		ConversationID: "c-1",
		SenderID:       "s-1",
		SenderRole:     role,
		Body:           body,
		Language:       language,
		Type:           entities.MessageTypeText,
		CreatedAt:      time.Now(),
	}
}

func TestEnrich_HealthTurnSuppressesSuggestions(t *testing.T) {
	f := newEnrichmentFixture()
	f.profiles.worker.Locale = "ja"
	f.model.healthIntentFn = func(req providers.HealthIntentRequest) *entities.HealthAnalysis {
		assert.Equal(t, "頭が痛いです", req.Text)
		return &entities.HealthAnalysis{HealthRelated: true, SymptomType: "general", Urgency: "soon"}
	}

	f.service.Enrich(context.Background(), inboundMessage(entities.RoleWorker, "頭が痛いです", "ja"))

	// The consultation flow started and owns the turn.
	require.NotNil(t, f.convs.state)
	assert.Equal(t, entities.HealthStateWaitingForIntent, f.convs.state.State)
	require.Len(t, f.messages.created, 1, "exactly one system message asking about a facility visit")

	assert.Equal(t, 0, f.model.suggestCalls, "no reply suggestions on a consultation turn")

	require.NotEmpty(t, f.enrichments.upserts)
	final := f.enrichments.upserts[len(f.enrichments.upserts)-1]
	assert.True(t, final.Extra.ConsultationInProgress)
	assert.Empty(t, final.Suggestions)
	require.NotNil(t, final.Extra.HealthAnalysis)
	assert.True(t, final.Extra.HealthAnalysis.HealthRelated)
}

func TestEnrich_ManagerMessageTranslatedForWorker(t *testing.T) {
	f := newEnrichmentFixture()
	f.model.translateFn = func(req providers.TranslationRequest) providers.TranslationResult {
		if req.SourceLang == "ja" && req.TargetLang == "vi" {
			return providers.TranslationResult{Text: "Ngày mai làm ca sáng nhé", Provider: "openai", Model: "gpt-4o-mini"}
		}
		return providers.TranslationResult{Text: req.Text, Fallback: true}
	}
	f.model.suggestFn = func(providers.SuggestionGenerationRequest) providers.SuggestionGenerationResult {
		return providers.SuggestionGenerationResult{Raw: "question: A\nempathy: B\nsolution: C"}
	}

	f.service.Enrich(context.Background(), inboundMessage(entities.RoleManager, "明日は朝番でお願いします", "ja"))

	require.GreaterOrEqual(t, len(f.enrichments.upserts), 2, "a partial write precedes the final write")

	partial := f.enrichments.upserts[0]
	require.NotNil(t, partial.Translation)
	assert.Equal(t, "Ngày mai làm ca sáng nhé", *partial.Translation)
	assert.Equal(t, "vi", partial.TranslationLang)

	final := f.enrichments.upserts[len(f.enrichments.upserts)-1]
	require.NotNil(t, final.Translation, "the final write keeps the translation")
	assert.Len(t, final.Suggestions, 3)
	assert.False(t, final.Extra.ConsultationInProgress)

	// One update per artifact write.
	assert.Len(t, f.bus.eventsOfType(entities.ChatEventMessageUpdated), 2)

	assert.Equal(t, 0, f.model.healthIntentCalls, "manager messages skip health analysis")
}

func TestEnrich_SameLanguageSkipsTranslationPhase(t *testing.T) {
	f := newEnrichmentFixture()
	f.profiles.worker.Locale = "ja"
	f.model.suggestFn = func(providers.SuggestionGenerationRequest) providers.SuggestionGenerationResult {
		return providers.SuggestionGenerationResult{Raw: "question: A\nempathy: B\nsolution: C"}
	}

	f.service.Enrich(context.Background(), inboundMessage(entities.RoleManager, "お疲れさまです", "ja"))

	assert.Equal(t, 0, f.model.translateCalls)
	require.Len(t, f.enrichments.upserts, 1, "only the final write happens without a translation")
	assert.Nil(t, f.enrichments.upserts[0].Translation)
}

func TestEnrich_PartialWriteFailureDoesNotAbortPipeline(t *testing.T) {
	f := newEnrichmentFixture()
	f.enrichments.upsertErrs = []error{errors.New("connection reset")}
	f.model.translateFn = func(req providers.TranslationRequest) providers.TranslationResult {
		return providers.TranslationResult{Text: "translated", Provider: "openai"}
	}
	f.model.suggestFn = func(providers.SuggestionGenerationRequest) providers.SuggestionGenerationResult {
		return providers.SuggestionGenerationResult{Raw: "question: A\nempathy: B\nsolution: C"}
	}

	f.service.Enrich(context.Background(), inboundMessage(entities.RoleManager, "明日は朝番でお願いします", "ja"))

	// The failed partial write aborted only its own phase; suggestions and
	// the final write still ran.
	assert.Equal(t, 1, f.model.suggestCalls)
	require.Len(t, f.enrichments.upserts, 2)
	final := f.enrichments.upserts[1]
	assert.Len(t, final.Suggestions, 3)
}

func TestEnrich_ImageSuggestionsTakePriority(t *testing.T) {
	f := newEnrichmentFixture()
	f.profiles.worker.Locale = "ja"
	f.model.imageFn = func(req providers.ImageAnalysisRequest) *entities.ImageAnalysis {
		return &entities.ImageAnalysis{Description: "壊れた工具の写真"}
	}
	var imagePromptSeen bool
	f.model.suggestFn = func(req providers.SuggestionGenerationRequest) providers.SuggestionGenerationResult {
		if req.UserPrompt == "Image description: 壊れた工具の写真" {
			imagePromptSeen = true
		}
		return providers.SuggestionGenerationResult{Raw: "question: A\nempathy: B\nsolution: C"}
	}

	msg := inboundMessage(entities.RoleManager, "", "ja")
	msg.Type = entities.MessageTypeImage
	msg.ContentURL = "https://example.com/tool.jpg"

	f.service.Enrich(context.Background(), msg)

	assert.True(t, imagePromptSeen, "image-based drafting takes priority over history-based")
	final := f.enrichments.upserts[len(f.enrichments.upserts)-1]
	require.NotNil(t, final.Extra.ImageAnalysis)
	assert.Equal(t, "壊れた工具の写真", final.Extra.ImageAnalysis.Description)
}

func TestEnrich_SuggestionsSeeInboundMessage(t *testing.T) {
	f := newEnrichmentFixture()
	f.profiles.worker.Locale = "ja"

	inbound := inboundMessage(entities.RoleManager, "明日の打ち合わせよろしくお願いします", "ja")
	// The inbound message is persisted before enrichment runs, so the
	// history window already contains it alongside older messages.
	f.messages.history = []*entities.Message{
		msgAt(entities.RoleManager, "先週はお疲れさまでした", inbound.CreatedAt.Add(-8*24*time.Hour)),
		inbound,
	}

	var captured providers.SuggestionGenerationRequest
	f.model.suggestFn = func(req providers.SuggestionGenerationRequest) providers.SuggestionGenerationResult {
		captured = req
		return providers.SuggestionGenerationResult{Raw: "question: A\nempathy: B\nsolution: C"}
	}

	f.service.Enrich(context.Background(), inbound)

	require.Equal(t, 1, f.model.suggestCalls)
	assert.Equal(t, 1, strings.Count(captured.UserPrompt, inbound.Body),
		"the prompt carries the message being replied to, exactly once")
	assert.NotContains(t, captured.SystemPrompt, "check_in",
		"a just-received message must not classify as a silence check-in")

	final := f.enrichments.upserts[len(f.enrichments.upserts)-1]
	assert.Len(t, final.Suggestions, 3)
}

func TestEnrich_SystemMessagesAreIgnored(t *testing.T) {
	f := newEnrichmentFixture()

	f.service.Enrich(context.Background(), inboundMessage(entities.RoleSystem, "体調はいかがですか？", "ja"))

	assert.Empty(t, f.enrichments.upserts)
	assert.Empty(t, f.messages.created)
}

func TestSegmentationService_ClampsAndSkipsBadSpans(t *testing.T) {
	f := newEnrichmentFixture()
	f.messages.history = []*entities.Message{
		inboundMessage(entities.RoleWorker, "こんにちは", "ja"),
		inboundMessage(entities.RoleManager, "お疲れさまです", "ja"),
		inboundMessage(entities.RoleWorker, "作業が終わりました", "ja"),
	}
	f.model.segmentFn = func(providers.SegmentationRequest) providers.SegmentationResult {
		return providers.SegmentationResult{Segments: []providers.SegmentSpan{
			{Topic: "挨拶", Summary: "greeting", StartIndex: -2, EndIndex: 1},
			{Topic: "作業報告", Summary: "report", StartIndex: 2, EndIndex: 99},
			{Topic: "壊れた区間", Summary: "broken", StartIndex: 5, EndIndex: 1},
		}}
	}
	segmentation := NewSegmentationService(f.model, f.messages, f.convs)

	err := segmentation.Regenerate(context.Background(), "c-1")

	require.NoError(t, err)
	require.Len(t, f.convs.segments, 2, "irrecoverable span skipped, not the batch")
	assert.Equal(t, 0, f.convs.segments[0].StartIndex, "negative start clamped")
	assert.Equal(t, 2, f.convs.segments[1].EndIndex, "overlong end clamped")
}

func TestSegmentationService_FallbackKeepsExistingSegments(t *testing.T) {
	f := newEnrichmentFixture()
	f.messages.history = []*entities.Message{
		inboundMessage(entities.RoleWorker, "こんにちは", "ja"),
	}
	existing := []*entities.ConversationSegment{{Topic: "既存"}}
	f.convs.segments = existing
	segmentation := NewSegmentationService(f.model, f.messages, f.convs) // model falls back

	err := segmentation.Regenerate(context.Background(), "c-1")

	require.NoError(t, err)
	assert.Equal(t, existing, f.convs.segments, "no replacement without a provider verdict")
}
