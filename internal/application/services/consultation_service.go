package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/repositories"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/observability"
)

// ConsultationService drives the multi-turn health consultation flow. It is
// the only component that mutates the per-conversation health state
// register. All failures are logged and absorbed: a consultation turn never
// escapes to the enrichment pipeline as an error.
type ConsultationService struct {
	model          providers.LanguageModel
	translator     *TranslationService
	facilitySearch *FacilitySearchService
	conversations  repositories.ConversationRepository
	messages       repositories.MessageRepository
	profiles       repositories.ProfileRepository
	bus            providers.EventBus
	metrics        *observability.Metrics
	operatingLang  string
}

// NewConsultationService creates a new consultation service
func NewConsultationService(
	model providers.LanguageModel,
	translator *TranslationService,
	facilitySearch *FacilitySearchService,
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	profiles repositories.ProfileRepository,
	bus providers.EventBus,
	metrics *observability.Metrics,
	operatingLang string,
) *ConsultationService {
	if operatingLang == "" {
		operatingLang = "ja"
	}
	return &ConsultationService{
		model:          model,
		translator:     translator,
		facilitySearch: facilitySearch,
		conversations:  conversations,
		messages:       messages,
		profiles:       profiles,
		bus:            bus,
		metrics:        metrics,
		operatingLang:  operatingLang,
	}
}

// HandleMessage processes one worker message. When the consultation flow is
// active, the message is consumed as a reply in the flow; otherwise the
// message is analyzed for health intent and may start a new flow. It
// reports whether the flow owns this turn's reply (suppressing AI
// suggestions) and the health analysis snapshot, if any.
func (s *ConsultationService) HandleMessage(ctx context.Context, msg *entities.Message, history []providers.ChatTurn) (bool, *entities.HealthAnalysis) {
	logger := observability.LoggerFromContext(ctx)

	state, err := s.conversations.GetHealthState(ctx, msg.ConversationID)
	if err != nil {
		logger.Error().
			Str("conversation_id", msg.ConversationID).
			Err(err).
			Msg("failed to load health state, skipping consultation turn")
		return false, nil
	}

	workerLocale := s.workerLocale(ctx, msg.ConversationID)

	if state.State.Active() {
		s.advance(ctx, msg, state, history, workerLocale)
		return true, state.StateData
	}

	analysis := s.model.AnalyzeHealthIntent(ctx, providers.HealthIntentRequest{
		Text:     msg.Body,
		Language: msg.Language,
		History:  history,
	})
	if analysis == nil || !analysis.HealthRelated {
		return false, analysis
	}

	s.begin(ctx, msg, state, analysis, workerLocale)
	return true, analysis
}

// begin starts a new consultation flow: NONE (or a completed register)
// transitions to WAITING_FOR_INTENT with a confirmation system message.
func (s *ConsultationService) begin(ctx context.Context, msg *entities.Message, state *entities.ConversationHealthState, analysis *entities.HealthAnalysis, workerLocale string) {
	state.StateData = analysis
	s.setState(ctx, state, entities.HealthStateWaitingForIntent)
	s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageConfirmation,
		s.text(textConfirmVisit), nil, workerLocale)
}

// advance consumes one worker reply while the flow is active. A
// cancellation phrase short-circuits to COMPLETED from any active state.
func (s *ConsultationService) advance(ctx context.Context, msg *entities.Message, state *entities.ConversationHealthState, history []providers.ChatTurn, workerLocale string) {
	if isCancellationPhrase(msg.Body) {
		s.setState(ctx, state, entities.HealthStateCompleted)
		s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageConfirmation,
			s.text(textClosingCancelled), nil, workerLocale)
		return
	}

	switch state.State {
	case entities.HealthStateWaitingForIntent:
		analysis := s.model.AnalyzeHealthConsultation(ctx, providers.ConsultationAnalysisRequest{
			Stage:    providers.StageIntent,
			Reply:    msg.Body,
			Language: msg.Language,
			History:  history,
		})
		if analysis != nil && analysis.WantsConsultation {
			s.setState(ctx, state, entities.HealthStateWaitingForSymptomInfo)
			s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageInquiry,
				s.text(textAskSymptomDetails), nil, workerLocale)
			return
		}
		s.setState(ctx, state, entities.HealthStateCompleted)
		s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageConfirmation,
			s.text(textClosingDeclined), nil, workerLocale)

	case entities.HealthStateWaitingForSymptomInfo:
		// Any reply advances; the details live in the conversation itself.
		s.setState(ctx, state, entities.HealthStateWaitingForSchedule)
		s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageScheduleRequest,
			s.text(textAskSchedule), nil, workerLocale)

	case entities.HealthStateWaitingForSchedule, entities.HealthStateProvidingFacilities:
		analysis := s.model.AnalyzeHealthConsultation(ctx, providers.ConsultationAnalysisRequest{
			Stage:    providers.StageSchedule,
			Reply:    msg.Body,
			Language: msg.Language,
			History:  history,
		})
		if analysis == nil || !analysis.ScheduleFound {
			// Stay put and re-prompt.
			s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageScheduleRequest,
				s.text(textReaskSchedule), nil, workerLocale)
			return
		}
		s.setState(ctx, state, entities.HealthStateProvidingFacilities)
		s.provideFacilities(ctx, msg, state, workerLocale)
		s.setState(ctx, state, entities.HealthStateCompleted)
	}
}

// provideFacilities runs the facility search and emits the appropriate
// system message. Search failures are logged, never propagated: the flow
// ends in COMPLETED regardless of the outcome.
func (s *ConsultationService) provideFacilities(ctx context.Context, msg *entities.Message, state *entities.ConversationHealthState, workerLocale string) {
	logger := observability.LoggerFromContext(ctx)

	worker, err := s.profiles.GetWorkerProfile(ctx, msg.ConversationID)
	if err != nil || worker == nil || strings.TrimSpace(worker.Address) == "" {
		s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageError,
			s.text(textNoAddress), nil, workerLocale)
		return
	}

	symptomType, urgency := "", ""
	if state.StateData != nil {
		symptomType = state.StateData.SymptomType
		urgency = state.StateData.Urgency
	}

	facilities, err := s.facilitySearch.Search(ctx, worker.Address, symptomType, urgency)
	if err != nil {
		logger.Error().
			Str("conversation_id", msg.ConversationID).
			Err(err).
			Msg("facility search failed")
		s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageError,
			s.text(textSearchFailed), nil, workerLocale)
		return
	}
	if len(facilities) == 0 {
		s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageFacilities,
			s.text(textNoFacilities), nil, workerLocale)
		return
	}

	var b strings.Builder
	b.WriteString(s.text(textFacilitiesFound))
	for i, facility := range facilities {
		fmt.Fprintf(&b, "\n%d. %s（%.1fkm）", i+1, facility.Name, facility.DistanceKm)
	}
	s.sendSystemMessage(ctx, msg.ConversationID, entities.SystemMessageFacilities,
		b.String(), facilities, workerLocale)
}

// setState persists a state transition and publishes the state-updated
// event. Persistence failures are logged; the in-memory transition still
// governs the rest of the turn.
func (s *ConsultationService) setState(ctx context.Context, state *entities.ConversationHealthState, next entities.HealthConsultationState) {
	state.State = next
	if err := s.conversations.SaveHealthState(ctx, state); err != nil {
		observability.LoggerFromContext(ctx).Error().
			Str("conversation_id", state.ConversationID).
			Str("state", string(next)).
			Err(err).
			Msg("failed to save health state")
	}
	s.publish(ctx, state.ConversationID, entities.ChatEventStateUpdated, state)
}

// sendSystemMessage writes a system message in the operating language,
// appending a translated counterpart when the worker's locale differs.
// Translation failure degrades to the original-language text only.
func (s *ConsultationService) sendSystemMessage(ctx context.Context, conversationID string, msgType entities.SystemMessageType, body string, facilities []*entities.MedicalFacility, workerLocale string) {
	logger := observability.LoggerFromContext(ctx)

	meta := entities.SystemMessageMetadata{Type: msgType, Facilities: facilities}

	if workerLocale != "" && workerLocale != s.operatingLang {
		translated := s.translator.Translate(ctx, body, s.operatingLang, workerLocale)
		if !translated.Fallback {
			meta.Translation = translated.Text
			meta.TranslationLang = workerLocale
			body = body + "\n\n" + translated.Text
		}
	}

	message := entities.NewSystemMessage(conversationID, body, s.operatingLang, meta)
	if err := s.messages.Create(ctx, message); err != nil {
		logger.Error().
			Str("conversation_id", conversationID).
			Str("system_message_type", string(msgType)).
			Err(err).
			Msg("failed to create system message")
		return
	}

	if s.metrics != nil {
		s.metrics.SystemMessageCount.Add(ctx, 1)
	}

	s.publish(ctx, conversationID, entities.ChatEventNewMessage, message)
}

func (s *ConsultationService) publish(ctx context.Context, conversationID string, eventType entities.ChatEventType, payload interface{}) {
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

// workerLocale resolves the worker's locale for translated counterparts.
// Missing profiles are tolerated.
func (s *ConsultationService) workerLocale(ctx context.Context, conversationID string) string {
	worker, err := s.profiles.GetWorkerProfile(ctx, conversationID)
	if err != nil || worker == nil {
		return ""
	}
	return worker.Locale
}

// cancellationPhrases close an active consultation from any state. Matching
// runs against the trimmed, lower-cased reply: exact match, prefix, suffix,
// or trailing-punctuation variants.
var cancellationPhrases = []string{
	"キャンセル",
	"やめます",
	"やめる",
	"やめておきます",
	"中止",
	"結構です",
	"大丈夫です",
	"cancel",
	"stop",
	"never mind",
	"nevermind",
	"no thanks",
	"not now",
}

func isCancellationPhrase(reply string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(reply))
	trimmed = strings.TrimRight(trimmed, "。．.!！?？、, ")
	if trimmed == "" {
		return false
	}
	for _, phrase := range cancellationPhrases {
		if trimmed == phrase || strings.HasPrefix(trimmed, phrase) || strings.HasSuffix(trimmed, phrase) {
			return true
		}
	}
	return false
}

// consultation system message texts, keyed by kind and language. Unknown
// operating languages fall back to Japanese.
type consultationText string

const (
	textConfirmVisit      consultationText = "confirm_visit"
	textAskSymptomDetails consultationText = "ask_symptom_details"
	textAskSchedule       consultationText = "ask_schedule"
	textReaskSchedule     consultationText = "reask_schedule"
	textFacilitiesFound   consultationText = "facilities_found"
	textNoFacilities      consultationText = "no_facilities"
	textNoAddress         consultationText = "no_address"
	textSearchFailed      consultationText = "search_failed"
	textClosingDeclined   consultationText = "closing_declined"
	textClosingCancelled  consultationText = "closing_cancelled"
)

var consultationTexts = map[string]map[consultationText]string{
	"ja": {
		textConfirmVisit:      "体調が優れないようですね。医療機関の受診をご希望ですか？",
		textAskSymptomDetails: "承知しました。症状について詳しく教えてください。いつ頃から、どのような症状がありますか？",
		textAskSchedule:       "受診をご希望の日時を教えてください。（例：明日の午前中）",
		textReaskSchedule:     "申し訳ありません、日時をうまく読み取れませんでした。ご希望の日時をもう一度教えてください。（例：明日の午前中）",
		textFacilitiesFound:   "お近くの医療機関が見つかりました。",
		textNoFacilities:      "申し訳ありません、お近くで条件に合う医療機関が見つかりませんでした。管理者にご相談ください。",
		textNoAddress:         "住所情報が登録されていないため、医療機関を検索できませんでした。管理者にご相談ください。",
		textSearchFailed:      "医療機関の検索中に問題が発生しました。しばらくしてからもう一度お試しください。",
		textClosingDeclined:   "承知しました。お大事になさってください。何かあればいつでもご相談ください。",
		textClosingCancelled:  "承知しました。ご相談を終了します。お大事になさってください。",
	},
	"en": {
		textConfirmVisit:      "It sounds like you are not feeling well. Would you like to visit a medical facility?",
		textAskSymptomDetails: "Understood. Please tell me more about your symptoms. Since when, and what kind of symptoms do you have?",
		textAskSchedule:       "Please tell me your preferred date and time for the visit (e.g. tomorrow morning).",
		textReaskSchedule:     "Sorry, I could not read the date and time. Please tell me your preferred date and time again (e.g. tomorrow morning).",
		textFacilitiesFound:   "I found medical facilities near you.",
		textNoFacilities:      "Sorry, I could not find a suitable medical facility near you. Please consult your manager.",
		textNoAddress:         "I could not search for facilities because no address is registered. Please consult your manager.",
		textSearchFailed:      "Something went wrong while searching for medical facilities. Please try again later.",
		textClosingDeclined:   "Understood. Please take care of yourself, and feel free to reach out anytime.",
		textClosingCancelled:  "Understood. Closing this consultation. Please take care of yourself.",
	},
}

func (s *ConsultationService) text(key consultationText) string {
	if texts, ok := consultationTexts[s.operatingLang]; ok {
		if t, ok := texts[key]; ok {
			return t
		}
	}
	return consultationTexts["ja"][key]
}
