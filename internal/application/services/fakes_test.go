package services

import (
	"context"
	"math"
	"sync"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	apperrors "github.com/kakehashi-app/kakehashi-backend/pkg/errors"
)

// fakeLanguageModel lets each test script the gateway per capability.
// Unset capabilities serve the same labeled fallbacks as the real gateway.
type fakeLanguageModel struct {
	translateFn    func(req providers.TranslationRequest) providers.TranslationResult
	suggestFn      func(req providers.SuggestionGenerationRequest) providers.SuggestionGenerationResult
	healthIntentFn func(req providers.HealthIntentRequest) *entities.HealthAnalysis
	consultationFn func(req providers.ConsultationAnalysisRequest) *entities.ConsultationAnalysis
	segmentFn      func(req providers.SegmentationRequest) providers.SegmentationResult
	imageFn        func(req providers.ImageAnalysisRequest) *entities.ImageAnalysis

	translateCalls    int
	suggestCalls      int
	healthIntentCalls int
	consultationCalls int
}

func (f *fakeLanguageModel) Translate(_ context.Context, req providers.TranslationRequest) providers.TranslationResult {
	f.translateCalls++
	if f.translateFn != nil {
		return f.translateFn(req)
	}
	return providers.TranslationResult{Text: req.Text, Fallback: true}
}

func (f *fakeLanguageModel) SuggestReplies(_ context.Context, req providers.SuggestionGenerationRequest) providers.SuggestionGenerationResult {
	f.suggestCalls++
	if f.suggestFn != nil {
		return f.suggestFn(req)
	}
	return providers.SuggestionGenerationResult{Raw: "", Fallback: true}
}

func (f *fakeLanguageModel) AnalyzeHealthIntent(_ context.Context, req providers.HealthIntentRequest) *entities.HealthAnalysis {
	f.healthIntentCalls++
	if f.healthIntentFn != nil {
		return f.healthIntentFn(req)
	}
	return &entities.HealthAnalysis{HealthRelated: false, Fallback: true}
}

func (f *fakeLanguageModel) AnalyzeHealthConsultation(_ context.Context, req providers.ConsultationAnalysisRequest) *entities.ConsultationAnalysis {
	f.consultationCalls++
	if f.consultationFn != nil {
		return f.consultationFn(req)
	}
	return &entities.ConsultationAnalysis{Fallback: true}
}

func (f *fakeLanguageModel) SegmentConversation(_ context.Context, req providers.SegmentationRequest) providers.SegmentationResult {
	if f.segmentFn != nil {
		return f.segmentFn(req)
	}
	return providers.SegmentationResult{Fallback: true}
}

func (f *fakeLanguageModel) AnalyzeImage(_ context.Context, req providers.ImageAnalysisRequest) *entities.ImageAnalysis {
	if f.imageFn != nil {
		return f.imageFn(req)
	}
	return &entities.ImageAnalysis{Fallback: true}
}

// fakeGeoProvider records every nearby search so radius escalation is
// observable via call order.
type fakeGeoProvider struct {
	geocodeFn func(address string) (*providers.GeocodedAddress, error)
	nearbyFn  func(req providers.NearbySearchRequest) ([]*providers.Place, error)

	nearbyCalls []providers.NearbySearchRequest
}

func (f *fakeGeoProvider) Geocode(_ context.Context, address string) (*providers.GeocodedAddress, error) {
	if f.geocodeFn != nil {
		return f.geocodeFn(address)
	}
	return &providers.GeocodedAddress{
		FormattedAddress: address,
		Coordinates:      providers.Coordinates{Latitude: 35.6812, Longitude: 139.7671},
	}, nil
}

func (f *fakeGeoProvider) NearbySearch(_ context.Context, req providers.NearbySearchRequest) ([]*providers.Place, error) {
	f.nearbyCalls = append(f.nearbyCalls, req)
	if f.nearbyFn != nil {
		return f.nearbyFn(req)
	}
	return nil, nil
}

func (f *fakeGeoProvider) CalculateDistance(_ context.Context, from, to providers.Coordinates) (float64, error) {
	const earthRadiusKm = 6371.0
	lat1 := from.Latitude * math.Pi / 180
	lat2 := to.Latitude * math.Pi / 180
	dLat := (to.Latitude - from.Latitude) * math.Pi / 180
	dLon := (to.Longitude - from.Longitude) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a)), nil
}

// fakeEventBus collects published events
type fakeEventBus struct {
	mu        sync.Mutex
	published []*entities.ChatEvent
}

func (f *fakeEventBus) Publish(_ context.Context, _ string, event *entities.ChatEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, event)
	return nil
}

func (f *fakeEventBus) Subscribe(context.Context, string) (<-chan *entities.ChatEvent, error) {
	return nil, nil
}

func (f *fakeEventBus) Unsubscribe(context.Context, string) error { return nil }
func (f *fakeEventBus) Close() error                              { return nil }

func (f *fakeEventBus) eventsOfType(eventType entities.ChatEventType) []*entities.ChatEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.ChatEvent
	for _, e := range f.published {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeMessageRepo serves a preset history window and records creations
type fakeMessageRepo struct {
	history   []*entities.Message
	created   []*entities.Message
	createErr error
}

func (f *fakeMessageRepo) Create(_ context.Context, message *entities.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, message)
	return nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id string) (*entities.Message, error) {
	for _, m := range f.history {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperrors.NewNotFoundError("message not found")
}

func (f *fakeMessageRepo) ListRecent(_ context.Context, _ string, limit int) ([]*entities.Message, error) {
	if len(f.history) <= limit {
		return f.history, nil
	}
	return f.history[len(f.history)-limit:], nil
}

// fakeEnrichmentRepo records every upsert so the partial and final writes
// are distinguishable
type fakeEnrichmentRepo struct {
	upserts    []entities.EnrichmentArtifact
	upsertErrs []error
}

func (f *fakeEnrichmentRepo) GetByMessageID(_ context.Context, messageID string) (*entities.EnrichmentArtifact, error) {
	return nil, apperrors.NewNotFoundError("enrichment not found")
}

func (f *fakeEnrichmentRepo) Upsert(_ context.Context, artifact *entities.EnrichmentArtifact) error {
	call := len(f.upserts)
	f.upserts = append(f.upserts, *artifact)
	if call < len(f.upsertErrs) && f.upsertErrs[call] != nil {
		return f.upsertErrs[call]
	}
	return nil
}

// fakeConversationRepo holds the single health state register in memory
type fakeConversationRepo struct {
	state    *entities.ConversationHealthState
	saved    []entities.ConversationHealthState
	segments []*entities.ConversationSegment
}

func (f *fakeConversationRepo) GetHealthState(_ context.Context, conversationID string) (*entities.ConversationHealthState, error) {
	if f.state == nil {
		return &entities.ConversationHealthState{
			ConversationID: conversationID,
			State:          entities.HealthStateNone,
		}, nil
	}
	copied := *f.state
	return &copied, nil
}

func (f *fakeConversationRepo) SaveHealthState(_ context.Context, state *entities.ConversationHealthState) error {
	copied := *state
	f.state = &copied
	f.saved = append(f.saved, copied)
	return nil
}

func (f *fakeConversationRepo) ReplaceSegments(_ context.Context, _ string, segments []*entities.ConversationSegment) error {
	f.segments = segments
	return nil
}

// fakeProfileRepo returns preset profiles; nil means not found
type fakeProfileRepo struct {
	worker *entities.WorkerProfile
	group  *entities.GroupProfile
}

func (f *fakeProfileRepo) GetWorkerProfile(context.Context, string) (*entities.WorkerProfile, error) {
	if f.worker == nil {
		return nil, apperrors.NewNotFoundError("worker profile not found")
	}
	return f.worker, nil
}

func (f *fakeProfileRepo) GetGroupProfile(context.Context, string) (*entities.GroupProfile, error) {
	if f.group == nil {
		return nil, apperrors.NewNotFoundError("group profile not found")
	}
	return f.group, nil
}
