package openai

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/observability"
	"github.com/kakehashi-app/kakehashi-backend/pkg/config"
)

const providerName = "openai"

// Client implements the LanguageModel gateway on top of the OpenAI chat
// completion API. None of its methods returns an error: an unconfigured or
// failing provider yields a labeled fallback result instead, so callers in
// the background pipeline never have to branch on gateway failures.
type Client struct {
	client *goopenai.Client
	cfg    *config.OpenAIConfig
}

// NewClient creates a new OpenAI-backed language model gateway. An empty
// API key produces a client that serves fallbacks only.
func NewClient(cfg *config.OpenAIConfig) providers.LanguageModel {
	c := &Client{cfg: cfg}
	if cfg != nil && cfg.APIKey != "" {
		c.client = goopenai.NewClient(cfg.APIKey)
	}
	return c
}

func (c *Client) configured() bool {
	return c.client != nil
}

// complete runs one chat completion and returns the raw assistant text.
// Latency and errors are recorded per capability and model.
func (c *Client) complete(ctx context.Context, capability, model string, messages []goopenai.ChatCompletionMessage, maxTokens int) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   maxTokens,
	})
	recordLLMMetric(ctx, capability, model, time.Since(start), err)
	if err != nil {
		observability.GetLogger().Error().
			Str("capability", capability).
			Str("model", model).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("openai request failed, falling back")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) logUnconfigured(capability string) {
	observability.GetLogger().Debug().
		Str("capability", capability).
		Msg("openai provider unconfigured, serving fallback")
}

// Translate translates text between languages. An output classified as an
// explanation rather than a translation is discarded in favor of the
// original text.
func (c *Client) Translate(ctx context.Context, req providers.TranslationRequest) providers.TranslationResult {
	fallback := providers.TranslationResult{Text: req.Text, Fallback: true}
	if !c.configured() {
		c.logUnconfigured("translate")
		return fallback
	}

	model := c.cfg.ModelFor("translate")
	out, err := c.complete(ctx, "translate", model, []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: translateSystemPrompt(req.SourceLang, req.TargetLang)},
		{Role: goopenai.ChatMessageRoleUser, Content: req.Text},
	}, 1000)
	if err != nil || out == "" {
		return fallback
	}

	out = stripCodeFences(out)
	if looksLikeExplanation(req.Text, out) {
		observability.GetLogger().Warn().
			Str("capability", "translate").
			Str("raw_output", snippet(out)).
			Msg("translation output looks like an explanation, keeping original text")
		return fallback
	}

	return providers.TranslationResult{Text: out, Provider: providerName, Model: model}
}

// SuggestReplies generates tone-labeled reply drafts. The raw lines are
// returned as-is; parsing is the suggestion service's concern.
func (c *Client) SuggestReplies(ctx context.Context, req providers.SuggestionGenerationRequest) providers.SuggestionGenerationResult {
	if !c.configured() {
		c.logUnconfigured("suggest")
		return providers.SuggestionGenerationResult{Raw: fallbackSuggestionLines(req.Language), Fallback: true}
	}

	model := c.cfg.ModelFor("suggest")
	out, err := c.complete(ctx, "suggest", model, []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt},
		{Role: goopenai.ChatMessageRoleUser, Content: req.UserPrompt},
	}, 800)
	if err != nil || out == "" {
		return providers.SuggestionGenerationResult{Raw: fallbackSuggestionLines(req.Language), Fallback: true}
	}

	return providers.SuggestionGenerationResult{Raw: stripCodeFences(out), Provider: providerName, Model: model}
}

// AnalyzeHealthIntent classifies whether the latest message is
// health-related. The fallback verdict is always "not health related".
func (c *Client) AnalyzeHealthIntent(ctx context.Context, req providers.HealthIntentRequest) *entities.HealthAnalysis {
	fallback := &entities.HealthAnalysis{HealthRelated: false, Fallback: true}
	if !c.configured() {
		c.logUnconfigured("analyze_health_intent")
		return fallback
	}

	model := c.cfg.ModelFor("analyze")
	out, err := c.complete(ctx, "analyze_health_intent", model, []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: healthIntentSystemPrompt},
		{Role: goopenai.ChatMessageRoleUser, Content: buildHealthIntentUserPrompt(req)},
	}, 400)
	if err != nil || out == "" {
		return fallback
	}

	block, ok := extractJSONBlock(out)
	if !ok {
		logParseFailure("analyze_health_intent", out)
		return fallback
	}

	var analysis entities.HealthAnalysis
	if err := json.Unmarshal([]byte(block), &analysis); err != nil {
		logParseFailure("analyze_health_intent", out)
		return fallback
	}
	return &analysis
}

// AnalyzeHealthConsultation classifies a worker reply inside the
// consultation flow: intent at the confirmation stage, schedule extraction
// at the scheduling stage.
func (c *Client) AnalyzeHealthConsultation(ctx context.Context, req providers.ConsultationAnalysisRequest) *entities.ConsultationAnalysis {
	fallback := &entities.ConsultationAnalysis{Fallback: true}
	if !c.configured() {
		c.logUnconfigured("analyze_consultation")
		return fallback
	}

	model := c.cfg.ModelFor("analyze")
	out, err := c.complete(ctx, "analyze_consultation", model, []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: consultationSystemPrompt(req.Stage)},
		{Role: goopenai.ChatMessageRoleUser, Content: buildConsultationUserPrompt(req)},
	}, 400)
	if err != nil || out == "" {
		return fallback
	}

	block, ok := extractJSONBlock(out)
	if !ok {
		logParseFailure("analyze_consultation", out)
		return fallback
	}

	var analysis entities.ConsultationAnalysis
	if err := json.Unmarshal([]byte(block), &analysis); err != nil {
		logParseFailure("analyze_consultation", out)
		return fallback
	}
	return &analysis
}

// SegmentConversation proposes a topic segmentation over a message window.
func (c *Client) SegmentConversation(ctx context.Context, req providers.SegmentationRequest) providers.SegmentationResult {
	fallback := providers.SegmentationResult{Fallback: true}
	if !c.configured() {
		c.logUnconfigured("segment")
		return fallback
	}

	model := c.cfg.ModelFor("analyze")
	out, err := c.complete(ctx, "segment", model, []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: segmentationSystemPrompt},
		{Role: goopenai.ChatMessageRoleUser, Content: buildSegmentationUserPrompt(req)},
	}, 1200)
	if err != nil || out == "" {
		return fallback
	}

	block, ok := extractJSONBlock(out)
	if !ok {
		logParseFailure("segment", out)
		return fallback
	}

	var spans []providers.SegmentSpan
	if err := json.Unmarshal([]byte(block), &spans); err != nil {
		logParseFailure("segment", out)
		return fallback
	}
	return providers.SegmentationResult{Segments: spans}
}

// AnalyzeImage describes an attached image using the vision model.
func (c *Client) AnalyzeImage(ctx context.Context, req providers.ImageAnalysisRequest) *entities.ImageAnalysis {
	fallback := &entities.ImageAnalysis{Fallback: true}
	if !c.configured() || req.ImageURL == "" {
		c.logUnconfigured("analyze_image")
		return fallback
	}

	model := c.cfg.ModelFor("vision")
	out, err := c.complete(ctx, "analyze_image", model, []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: imageAnalysisSystemPrompt(req.Language)},
		{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{Type: goopenai.ChatMessagePartTypeText, Text: buildImageAnalysisUserPrompt(req)},
				{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{URL: req.ImageURL}},
			},
		},
	}, 600)
	if err != nil || out == "" {
		return fallback
	}

	return &entities.ImageAnalysis{Description: stripCodeFences(out)}
}

func logParseFailure(capability, raw string) {
	observability.GetLogger().Error().
		Str("capability", capability).
		Str("raw_output", snippet(raw)).
		Msg("failed to parse model output, serving fallback")
}

func snippet(s string) string {
	runes := []rune(s)
	if len(runes) > 200 {
		return string(runes[:200]) + "..."
	}
	return s
}

type llmMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
}

// Metric instruments are initialized once; recordLLMMetric is called from
// concurrent enrichment tasks.
var llmMetricsOnce sync.Once
var llmMetricsInstruments *llmMetrics

func ensureLLMMetrics() *llmMetrics {
	llmMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/kakehashi-app/kakehashi-backend/openai")

		requestCount, err := meter.Int64Counter(
			"ai.openai.request.count",
			metric.WithDescription("Number of OpenAI requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.openai.request.duration",
			metric.WithDescription("OpenAI request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.openai.request.errors",
			metric.WithDescription("Number of OpenAI request errors"),
		)
		if err != nil {
			return
		}

		llmMetricsInstruments = &llmMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
		}
	})
	return llmMetricsInstruments
}

func recordLLMMetric(ctx context.Context, capability, model string, duration time.Duration, err error) {
	instruments := ensureLLMMetrics()
	if instruments == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", providerName),
		attribute.String("ai.model", model),
		attribute.String("ai.capability", capability),
	}

	instruments.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	instruments.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		instruments.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
