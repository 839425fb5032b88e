package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/observability"
)

// suggestionContext classifies the conversation situation the drafts should
// address. Classification is deterministic and computed once per turn, in
// fixed priority order.
type suggestionContext string

const (
	contextWelcome        suggestionContext = "welcome"
	contextConsultation   suggestionContext = "consultation"
	contextCheckIn        suggestionContext = "check_in"
	contextGentleFollowUp suggestionContext = "gentle_follow_up"
	contextContinuation   suggestionContext = "continuation"
	contextDefault        suggestionContext = "default"
)

// healthKeywordPattern spots health complaints in the latest counterpart
// message for the consultation-oriented framing.
var healthKeywordPattern = regexp.MustCompile(
	`痛|熱がある|発熱|咳|風邪|病院|体調|具合が悪|怪我|けが|薬|めまい|眩暈|吐き気|眠れない|` +
		`sick|pain|hurt|fever|headache|injur|ill\b|hospital|doctor|can't sleep|cannot sleep`,
)

// contextTones maps each context to its tone triplet, in output order.
var contextTones = map[suggestionContext][]entities.Tone{
	contextWelcome:        {entities.ToneWelcome, entities.ToneWelcome, entities.ToneWelcome},
	contextConsultation:   {entities.ToneEmpathy, entities.ToneQuestion, entities.ToneSolution},
	contextCheckIn:        {entities.ToneCheckIn, entities.ToneCheckIn, entities.ToneCheckIn},
	contextGentleFollowUp: {entities.ToneGentleFollowUp, entities.ToneGentleFollowUp, entities.ToneContinuation},
	contextContinuation:   {entities.ToneContinuation, entities.ToneEncouragement, entities.ToneEmpathy},
	contextDefault:        {entities.ToneQuestion, entities.ToneEmpathy, entities.ToneSolution},
}

// SuggestionService drafts tone-labeled replies from conversation history
// and the worker/group profile. It never fails: unparseable model output
// degrades to a single safe default suggestion.
type SuggestionService struct {
	model      providers.LanguageModel
	translator *TranslationService
	now        func() time.Time
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(model providers.LanguageModel, translator *TranslationService) *SuggestionService {
	return &SuggestionService{
		model:      model,
		translator: translator,
		now:        time.Now,
	}
}

// SuggestionRequest carries everything one generation turn needs
type SuggestionRequest struct {
	// History is the recent message window in chronological order.
	History []*entities.Message
	// ForRole is the side the drafts are written for; the "other party"
	// is the opposite side.
	ForRole entities.SenderRole
	Worker  *entities.WorkerProfile
	Group   *entities.GroupProfile
	// Language is the generation language; TranslateTo, when set and
	// different, requests a per-suggestion translation.
	Language    string
	TranslateTo string
}

// Generate produces tone-labeled reply drafts for the requested side
func (s *SuggestionService) Generate(ctx context.Context, req SuggestionRequest) []entities.Suggestion {
	sctx := classifyContext(req.History, req.ForRole, s.now())
	tones := contextTones[sctx]

	result := s.model.SuggestReplies(ctx, providers.SuggestionGenerationRequest{
		SystemPrompt: buildSuggestionSystemPrompt(sctx, tones, req.Language),
		UserPrompt:   buildSuggestionUserPrompt(req),
		Language:     req.Language,
	})

	suggestions := parseSuggestionLines(result.Raw, req.Language)
	return s.translateSuggestions(ctx, suggestions, req.Language, req.TranslateTo)
}

// GenerateFromImage produces drafts reacting to an attached image; it uses
// the same line parser as history-based generation.
func (s *SuggestionService) GenerateFromImage(ctx context.Context, analysis *entities.ImageAnalysis, req SuggestionRequest) []entities.Suggestion {
	result := s.model.SuggestReplies(ctx, providers.SuggestionGenerationRequest{
		SystemPrompt: buildImageSuggestionSystemPrompt(req.Language),
		UserPrompt:   "Image description: " + analysis.Description,
		Language:     req.Language,
	})

	suggestions := parseSuggestionLines(result.Raw, req.Language)
	return s.translateSuggestions(ctx, suggestions, req.Language, req.TranslateTo)
}

// translateSuggestions translates each suggestion independently. A per-item
// translation failure keeps the item untranslated rather than dropping it.
func (s *SuggestionService) translateSuggestions(ctx context.Context, suggestions []entities.Suggestion, language, translateTo string) []entities.Suggestion {
	if translateTo == "" || translateTo == language || s.translator == nil {
		return suggestions
	}
	for i := range suggestions {
		translated := s.translator.Translate(ctx, suggestions[i].Content, language, translateTo)
		if translated.Fallback {
			observability.LoggerFromContext(ctx).Warn().
				Str("target_lang", translateTo).
				Msg("suggestion translation fell back, keeping original only")
			continue
		}
		text := translated.Text
		suggestions[i].Translation = &text
	}
	return suggestions
}

// classifyContext picks the suggestion context in fixed priority order:
// welcome, consultation, check-in (>=7 days), gentle follow-up (3-7 days),
// continuation (>=2 consecutive same-side messages), default.
func classifyContext(history []*entities.Message, forRole entities.SenderRole, now time.Time) suggestionContext {
	if len(history) == 0 {
		return contextWelcome
	}

	var lastCounterpart *entities.Message
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.SenderRole != forRole && m.SenderRole != entities.RoleSystem {
			lastCounterpart = m
			break
		}
	}

	if lastCounterpart != nil && healthKeywordPattern.MatchString(strings.ToLower(lastCounterpart.Body)) {
		return contextConsultation
	}

	if lastCounterpart != nil {
		silence := now.Sub(lastCounterpart.CreatedAt)
		if silence >= 7*24*time.Hour {
			return contextCheckIn
		}
		if silence >= 3*24*time.Hour {
			return contextGentleFollowUp
		}
	}

	if consecutiveSameSide(history) >= 2 {
		return contextContinuation
	}

	return contextDefault
}

// consecutiveSameSide counts the trailing run of non-system messages from
// one side.
func consecutiveSameSide(history []*entities.Message) int {
	count := 0
	var side entities.SenderRole
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.SenderRole == entities.RoleSystem {
			continue
		}
		if count == 0 {
			side = m.SenderRole
		} else if m.SenderRole != side {
			break
		}
		count++
	}
	return count
}

// parseSuggestionLines splits model output into tone-labeled suggestions:
// one per line, leading bullet markers stripped, the first colon separating
// the tone label from the content. An unrecognized tone maps to "solution";
// a fully unparseable output yields a single safe default suggestion.
func parseSuggestionLines(raw, language string) []entities.Suggestion {
	suggestions := make([]entities.Suggestion, 0, 3)

	for _, line := range strings.Split(raw, "\n") {
		line = stripBulletMarker(strings.TrimSpace(line))
		if line == "" {
			continue
		}

		idx := strings.IndexAny(line, ":：")
		if idx <= 0 {
			continue
		}

		label := strings.ToLower(strings.TrimSpace(line[:idx]))
		content := strings.TrimSpace(strings.TrimLeft(line[idx:], ":： "))
		if content == "" {
			continue
		}

		suggestions = append(suggestions, entities.Suggestion{
			Content:  content,
			Tone:     entities.ParseTone(label),
			Language: language,
		})
		if len(suggestions) == 3 {
			break
		}
	}

	if len(suggestions) == 0 {
		return []entities.Suggestion{defaultSuggestion(language)}
	}
	return suggestions
}

var bulletMarkerPattern = regexp.MustCompile(`^([-*・]|\d+[.)])\s*`)

func stripBulletMarker(line string) string {
	return bulletMarkerPattern.ReplaceAllString(line, "")
}

func defaultSuggestion(language string) entities.Suggestion {
	content := "Thank you for your message. Let me get back to you shortly."
	if language == "ja" {
		content = "ご連絡ありがとうございます。内容を確認して、改めてお返事しますね。"
	}
	return entities.Suggestion{
		Content:  content,
		Tone:     entities.ToneSolution,
		Language: language,
	}
}

func buildSuggestionSystemPrompt(sctx suggestionContext, tones []entities.Tone, language string) string {
	labels := make([]string, len(tones))
	for i, tone := range tones {
		labels[i] = string(tone)
	}

	var framing string
	switch sctx {
	case contextWelcome:
		framing = "This is the very first message of the conversation. Draft warm onboarding messages that welcome the worker and invite them to share anything."
	case contextConsultation:
		framing = "The other party mentioned a health problem. Draft caring replies: acknowledge the complaint, ask about the symptoms, and offer concrete help such as seeing a doctor."
	case contextCheckIn:
		framing = "More than a week has passed since the other party's last message. Draft gentle check-in messages asking how they are doing."
	case contextGentleFollowUp:
		framing = "A few days have passed since the other party's last message. Draft light follow-up messages that do not pressure them."
	case contextContinuation:
		framing = "The same side has sent several messages in a row. Draft replies that pick the thread back up and keep the conversation going."
	default:
		framing = "Draft natural replies that move the conversation forward."
	}

	return fmt.Sprintf(
		"You draft reply suggestions for a workplace chat between a foreign worker and their manager in Japan. %s "+
			"Write in %s, short and friendly. Return EXACTLY %d lines, one suggestion per line, each formatted as 'tone: content' "+
			"using these tones in this order: %s. No numbering, no extra text.",
		framing, language, len(labels), strings.Join(labels, ", "),
	)
}

func buildImageSuggestionSystemPrompt(language string) string {
	return fmt.Sprintf(
		"You draft reply suggestions for a workplace chat between a foreign worker and their manager in Japan. "+
			"The other party shared an image; a description follows. Draft replies reacting to the image. "+
			"Write in %s, short and friendly. Return EXACTLY 3 lines, one suggestion per line, each formatted as 'tone: content' "+
			"using these tones in this order: question, empathy, solution. No numbering, no extra text.",
		language,
	)
}

func buildSuggestionUserPrompt(req SuggestionRequest) string {
	var b strings.Builder

	if req.Worker != nil {
		fmt.Fprintf(&b, "Worker: %s", req.Worker.Name)
		if req.Worker.CountryOfOrigin != "" {
			fmt.Fprintf(&b, " (from %s)", req.Worker.CountryOfOrigin)
		}
		if req.Worker.JobDescription != "" {
			fmt.Fprintf(&b, ", job: %s", req.Worker.JobDescription)
		}
		if req.Worker.Notes != "" {
			fmt.Fprintf(&b, ", notes: %s", req.Worker.Notes)
		}
		b.WriteString("\n")
	}
	if req.Group != nil && req.Group.Name != "" {
		fmt.Fprintf(&b, "Workplace: %s\n", req.Group.Name)
	}
	fmt.Fprintf(&b, "Drafting replies for the %s side.\n", req.ForRole)

	if len(req.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range req.History {
			if m.SenderRole == entities.RoleSystem {
				continue
			}
			fmt.Fprintf(&b, "[%s] %s\n", m.SenderRole, m.Body)
		}
	} else {
		b.WriteString("No conversation history yet.\n")
	}

	return b.String()
}
