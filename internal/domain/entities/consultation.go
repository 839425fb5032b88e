package entities

import (
	"time"
)

// HealthConsultationState is the per-conversation consultation flow state
type HealthConsultationState string

const (
	HealthStateNone                  HealthConsultationState = "none"
	HealthStateWaitingForIntent      HealthConsultationState = "waiting_for_intent"
	HealthStateWaitingForSymptomInfo HealthConsultationState = "waiting_for_symptom_details"
	HealthStateWaitingForSchedule    HealthConsultationState = "waiting_for_schedule"
	HealthStateProvidingFacilities   HealthConsultationState = "providing_facilities"
	HealthStateCompleted             HealthConsultationState = "completed"
)

// Active reports whether the consultation flow currently owns the
// conversation's replies.
func (s HealthConsultationState) Active() bool {
	return s != HealthStateNone && s != HealthStateCompleted && s != ""
}

// Urgency levels reported by health analysis
const (
	UrgencyImmediate = "immediate"
	UrgencySoon      = "soon"
	UrgencyRoutine   = "routine"
)

// HealthAnalysis is the snapshot produced by the health-intent capability.
// Fallback marks results produced without a configured provider.
type HealthAnalysis struct {
	HealthRelated bool   `json:"health_related"`
	SymptomType   string `json:"symptom_type,omitempty"`
	Urgency       string `json:"urgency,omitempty"`
	Summary       string `json:"summary,omitempty"`
	Fallback      bool   `json:"fallback,omitempty"`
}

// ConsultationAnalysis classifies a worker reply inside the consultation
// flow: whether they want a facility visit, and any extracted schedule.
type ConsultationAnalysis struct {
	WantsConsultation bool   `json:"wants_consultation"`
	ScheduleFound     bool   `json:"schedule_found"`
	PreferredSchedule string `json:"preferred_schedule,omitempty"`
	Fallback          bool   `json:"fallback,omitempty"`
}

// ImageAnalysis is the snapshot produced by the image capability
type ImageAnalysis struct {
	Description string `json:"description"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// ConversationHealthState is the single mutable consultation register per
// conversation. Mutated only by the consultation service.
type ConversationHealthState struct {
	ConversationID string                  `json:"conversation_id" db:"conversation_id"`
	State          HealthConsultationState `json:"state" db:"state"`
	StateData      *HealthAnalysis         `json:"state_data,omitempty"`
	UpdatedAt      time.Time               `json:"updated_at" db:"updated_at"`
}
