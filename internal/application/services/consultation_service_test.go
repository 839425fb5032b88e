package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
)

type consultationFixture struct {
	service  *ConsultationService
	model    *fakeLanguageModel
	geo      *fakeGeoProvider
	convs    *fakeConversationRepo
	messages *fakeMessageRepo
	profiles *fakeProfileRepo
	bus      *fakeEventBus
}

func newConsultationFixture() *consultationFixture {
	model := &fakeLanguageModel{}
	geo := &fakeGeoProvider{}
	convs := &fakeConversationRepo{}
	messages := &fakeMessageRepo{}
	profiles := &fakeProfileRepo{
		worker: &entities.WorkerProfile{ID: "w-1", Name: "Nguyen", Locale: "ja", Address: "東京都千代田区1-1"},
	}
	bus := &fakeEventBus{}

	translator := NewTranslationService(model, nil, nil)
	facilitySearch := NewFacilitySearchService(geo, nil)
	service := NewConsultationService(model, translator, facilitySearch, convs, messages, profiles, bus, nil, "ja")

	return &consultationFixture{
		service:  service,
		model:    model,
		geo:      geo,
		convs:    convs,
		messages: messages,
		profiles: profiles,
		bus:      bus,
	}
}

func workerMessage(body string) *entities.Message {
	return &entities.Message{
		ID:             "m-1",
		ConversationID: "c-1",
		SenderID:       "w-1",
		SenderRole:     entities.RoleWorker,
		Body:           body,
		Language:       "ja",
		Type:           entities.MessageTypeText,
	}
}

func TestConsultationService_HealthAnalysisStartsFlow(t *testing.T) {
	f := newConsultationFixture()
	f.model.healthIntentFn = func(providers.HealthIntentRequest) *entities.HealthAnalysis {
		return &entities.HealthAnalysis{HealthRelated: true, SymptomType: "general", Urgency: "soon"}
	}

	owned, analysis := f.service.HandleMessage(context.Background(), workerMessage("頭が痛いです"), nil)

	assert.True(t, owned, "the flow owns the turn when it starts")
	require.NotNil(t, analysis)
	assert.True(t, analysis.HealthRelated)

	require.NotNil(t, f.convs.state)
	assert.Equal(t, entities.HealthStateWaitingForIntent, f.convs.state.State)
	require.NotNil(t, f.convs.state.StateData)
	assert.Equal(t, "general", f.convs.state.StateData.SymptomType)

	require.Len(t, f.messages.created, 1, "exactly one system message")
	msg := f.messages.created[0]
	assert.Equal(t, entities.MessageTypeSystem, msg.Type)
	var meta entities.SystemMessageMetadata
	require.NoError(t, json.Unmarshal(msg.Metadata, &meta))
	assert.Equal(t, entities.SystemMessageConfirmation, meta.Type)

	assert.Len(t, f.bus.eventsOfType(entities.ChatEventStateUpdated), 1)
	assert.Len(t, f.bus.eventsOfType(entities.ChatEventNewMessage), 1)
}

func TestConsultationService_NotHealthRelatedDoesNothing(t *testing.T) {
	f := newConsultationFixture()

	owned, _ := f.service.HandleMessage(context.Background(), workerMessage("今日は晴れですね"), nil)

	assert.False(t, owned)
	assert.Nil(t, f.convs.state, "no state transition without a health verdict")
	assert.Empty(t, f.messages.created)
}

func TestConsultationService_CancellationFromAnyActiveState(t *testing.T) {
	activeStates := []entities.HealthConsultationState{
		entities.HealthStateWaitingForIntent,
		entities.HealthStateWaitingForSymptomInfo,
		entities.HealthStateWaitingForSchedule,
	}

	for _, state := range activeStates {
		t.Run(string(state), func(t *testing.T) {
			f := newConsultationFixture()
			f.convs.state = &entities.ConversationHealthState{
				ConversationID: "c-1",
				State:          state,
			}

			owned, _ := f.service.HandleMessage(context.Background(), workerMessage("キャンセルします"), nil)

			assert.True(t, owned)
			assert.Equal(t, entities.HealthStateCompleted, f.convs.state.State)
			require.Len(t, f.messages.created, 1, "one closing system message")
			assert.Equal(t, 0, f.model.consultationCalls, "cancellation bypasses the classifier")
		})
	}
}

func TestConsultationService_ReentryAfterCompleted(t *testing.T) {
	f := newConsultationFixture()
	f.convs.state = &entities.ConversationHealthState{
		ConversationID: "c-1",
		State:          entities.HealthStateCompleted,
	}
	f.model.healthIntentFn = func(providers.HealthIntentRequest) *entities.HealthAnalysis {
		return &entities.HealthAnalysis{HealthRelated: true, SymptomType: "dental"}
	}

	owned, _ := f.service.HandleMessage(context.Background(), workerMessage("歯が痛いです"), nil)

	assert.True(t, owned)
	assert.Equal(t, entities.HealthStateWaitingForIntent, f.convs.state.State,
		"a fresh health analysis re-enters the flow from COMPLETED")
}

func TestConsultationService_IntentDeclineCloses(t *testing.T) {
	f := newConsultationFixture()
	f.convs.state = &entities.ConversationHealthState{
		ConversationID: "c-1",
		State:          entities.HealthStateWaitingForIntent,
	}
	f.model.consultationFn = func(req providers.ConsultationAnalysisRequest) *entities.ConsultationAnalysis {
		assert.Equal(t, providers.StageIntent, req.Stage)
		return &entities.ConsultationAnalysis{WantsConsultation: false}
	}

	owned, _ := f.service.HandleMessage(context.Background(), workerMessage("今は行かなくていいと思います"), nil)

	assert.True(t, owned)
	assert.Equal(t, entities.HealthStateCompleted, f.convs.state.State)
	require.Len(t, f.messages.created, 1)
}

func TestConsultationService_IntentAcceptAsksForSymptoms(t *testing.T) {
	f := newConsultationFixture()
	f.convs.state = &entities.ConversationHealthState{
		ConversationID: "c-1",
		State:          entities.HealthStateWaitingForIntent,
	}
	f.model.consultationFn = func(providers.ConsultationAnalysisRequest) *entities.ConsultationAnalysis {
		return &entities.ConsultationAnalysis{WantsConsultation: true}
	}

	f.service.HandleMessage(context.Background(), workerMessage("はい、行きたいです"), nil)

	assert.Equal(t, entities.HealthStateWaitingForSymptomInfo, f.convs.state.State)
	require.Len(t, f.messages.created, 1)
	var meta entities.SystemMessageMetadata
	require.NoError(t, json.Unmarshal(f.messages.created[0].Metadata, &meta))
	assert.Equal(t, entities.SystemMessageInquiry, meta.Type)
}

func TestConsultationService_SymptomDetailsAdvanceToSchedule(t *testing.T) {
	f := newConsultationFixture()
	f.convs.state = &entities.ConversationHealthState{
		ConversationID: "c-1",
		State:          entities.HealthStateWaitingForSymptomInfo,
	}

	f.service.HandleMessage(context.Background(), workerMessage("昨日から喉が痛くて熱もあります"), nil)

	assert.Equal(t, entities.HealthStateWaitingForSchedule, f.convs.state.State)
	require.Len(t, f.messages.created, 1)
	var meta entities.SystemMessageMetadata
	require.NoError(t, json.Unmarshal(f.messages.created[0].Metadata, &meta))
	assert.Equal(t, entities.SystemMessageScheduleRequest, meta.Type)
}

func TestConsultationService_ScheduleExtractionFailureReprompts(t *testing.T) {
	f := newConsultationFixture()
	f.convs.state = &entities.ConversationHealthState{
		ConversationID: "c-1",
		State:          entities.HealthStateWaitingForSchedule,
	}
	f.model.consultationFn = func(providers.ConsultationAnalysisRequest) *entities.ConsultationAnalysis {
		return &entities.ConsultationAnalysis{ScheduleFound: false}
	}

	owned, _ := f.service.HandleMessage(context.Background(), workerMessage("うーん、どうしようかな"), nil)

	assert.True(t, owned)
	assert.Equal(t, entities.HealthStateWaitingForSchedule, f.convs.state.State, "stays put on extraction failure")
	require.Len(t, f.messages.created, 1)
	var meta entities.SystemMessageMetadata
	require.NoError(t, json.Unmarshal(f.messages.created[0].Metadata, &meta))
	assert.Equal(t, entities.SystemMessageScheduleRequest, meta.Type)
}

func TestConsultationService_ScheduleSuccessProvidesFacilities(t *testing.T) {
	f := newConsultationFixture()
	f.convs.state = &entities.ConversationHealthState{
		ConversationID: "c-1",
		State:          entities.HealthStateWaitingForSchedule,
		StateData:      &entities.HealthAnalysis{HealthRelated: true, SymptomType: "general", Urgency: "soon"},
	}
	f.model.consultationFn = func(providers.ConsultationAnalysisRequest) *entities.ConsultationAnalysis {
		return &entities.ConsultationAnalysis{ScheduleFound: true, PreferredSchedule: "明日の午前中"}
	}
	open := true
	f.geo.nearbyFn = func(req providers.NearbySearchRequest) ([]*providers.Place, error) {
		return []*providers.Place{
			{
				ID:   "p-1",
				Name: "中央クリニック",
				Coordinates: providers.Coordinates{
					Latitude:  req.Center.Latitude + 0.005,
					Longitude: req.Center.Longitude,
				},
				Rating:  4.1,
				OpenNow: &open,
			},
		}, nil
	}

	f.service.HandleMessage(context.Background(), workerMessage("明日の午前中でお願いします"), nil)

	assert.Equal(t, entities.HealthStateCompleted, f.convs.state.State)
	require.Len(t, f.messages.created, 1)
	var meta entities.SystemMessageMetadata
	require.NoError(t, json.Unmarshal(f.messages.created[0].Metadata, &meta))
	assert.Equal(t, entities.SystemMessageFacilities, meta.Type)
	require.Len(t, meta.Facilities, 1)
	assert.Equal(t, "中央クリニック", meta.Facilities[0].Name)
}

func TestConsultationService_MissingAddressEmitsError(t *testing.T) {
	f := newConsultationFixture()
	f.profiles.worker = &entities.WorkerProfile{ID: "w-1", Name: "Nguyen", Locale: "ja"}
	f.convs.state = &entities.ConversationHealthState{
		ConversationID: "c-1",
		State:          entities.HealthStateWaitingForSchedule,
		StateData:      &entities.HealthAnalysis{HealthRelated: true},
	}
	f.model.consultationFn = func(providers.ConsultationAnalysisRequest) *entities.ConsultationAnalysis {
		return &entities.ConsultationAnalysis{ScheduleFound: true}
	}

	f.service.HandleMessage(context.Background(), workerMessage("明日でお願いします"), nil)

	assert.Equal(t, entities.HealthStateCompleted, f.convs.state.State, "the flow completes even without an address")
	require.Len(t, f.messages.created, 1)
	var meta entities.SystemMessageMetadata
	require.NoError(t, json.Unmarshal(f.messages.created[0].Metadata, &meta))
	assert.Equal(t, entities.SystemMessageError, meta.Type)
	assert.Empty(t, f.geo.nearbyCalls, "no search without an address")
}

func TestConsultationService_SystemMessageCarriesWorkerTranslation(t *testing.T) {
	f := newConsultationFixture()
	f.profiles.worker.Locale = "vi"
	f.model.healthIntentFn = func(providers.HealthIntentRequest) *entities.HealthAnalysis {
		return &entities.HealthAnalysis{HealthRelated: true}
	}
	f.model.translateFn = func(req providers.TranslationRequest) providers.TranslationResult {
		assert.Equal(t, "ja", req.SourceLang)
		assert.Equal(t, "vi", req.TargetLang)
		return providers.TranslationResult{Text: "Bạn có muốn đi khám không?", Provider: "openai"}
	}

	f.service.HandleMessage(context.Background(), workerMessage("頭が痛いです"), nil)

	require.Len(t, f.messages.created, 1)
	msg := f.messages.created[0]
	assert.Contains(t, msg.Body, "Bạn có muốn đi khám không?")
	var meta entities.SystemMessageMetadata
	require.NoError(t, json.Unmarshal(msg.Metadata, &meta))
	assert.Equal(t, "vi", meta.TranslationLang)
}

func TestConsultationService_TranslationFailureKeepsOriginalOnly(t *testing.T) {
	f := newConsultationFixture()
	f.profiles.worker.Locale = "vi"
	f.model.healthIntentFn = func(providers.HealthIntentRequest) *entities.HealthAnalysis {
		return &entities.HealthAnalysis{HealthRelated: true}
	}
	// Default fake translate is a fallback.

	f.service.HandleMessage(context.Background(), workerMessage("頭が痛いです"), nil)

	require.Len(t, f.messages.created, 1)
	var meta entities.SystemMessageMetadata
	require.NoError(t, json.Unmarshal(f.messages.created[0].Metadata, &meta))
	assert.Empty(t, meta.Translation, "degrades to the original-language text only")
}

func TestIsCancellationPhrase(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"キャンセル", true},
		{"キャンセル！", true},
		{"やっぱりキャンセル", true},
		{"やめます。", true},
		{"CANCEL", true},
		{"no thanks!", true},
		{"頭が痛いです", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			assert.Equal(t, tt.want, isCancellationPhrase(tt.reply))
		})
	}
}
