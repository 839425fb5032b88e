package entities

import (
	"time"
)

// Tone categorizes the intent of a suggested reply
type Tone string

const (
	ToneWelcome        Tone = "welcome"
	ToneQuestion       Tone = "question"
	ToneEmpathy        Tone = "empathy"
	ToneSolution       Tone = "solution"
	ToneCheckIn        Tone = "check_in"
	ToneGentleFollowUp Tone = "gentle_follow_up"
	ToneContinuation   Tone = "continuation"
	ToneEncouragement  Tone = "encouragement"
)

// ParseTone maps a free-text tone label to a known Tone. Unrecognized
// labels map to ToneSolution.
func ParseTone(label string) Tone {
	switch Tone(label) {
	case ToneWelcome, ToneQuestion, ToneEmpathy, ToneSolution,
		ToneCheckIn, ToneGentleFollowUp, ToneContinuation, ToneEncouragement:
		return Tone(label)
	}
	// Accept the hyphenated spellings models tend to produce.
	switch label {
	case "check-in", "checkin":
		return ToneCheckIn
	case "gentle-follow-up", "follow-up", "follow_up":
		return ToneGentleFollowUp
	}
	return ToneSolution
}

// Suggestion is one AI-drafted reply attached to a message
type Suggestion struct {
	Content     string  `json:"content"`
	Tone        Tone    `json:"tone"`
	Language    string  `json:"language"`
	Translation *string `json:"translation,omitempty"`
}

// ArtifactExtra carries provider metadata and analysis snapshots accumulated
// across the pipeline phases.
type ArtifactExtra struct {
	Provider               string          `json:"provider,omitempty"`
	Model                  string          `json:"model,omitempty"`
	HealthAnalysis         *HealthAnalysis `json:"health_analysis,omitempty"`
	ImageAnalysis          *ImageAnalysis  `json:"image_analysis,omitempty"`
	ConsultationInProgress bool            `json:"consultation_in_progress,omitempty"`
}

// EnrichmentArtifact is the one-to-one enrichment record for a message.
// It is written twice per message: a partial write right after translation
// and a final write when the pipeline completes.
type EnrichmentArtifact struct {
	ID              string        `json:"id" db:"id"`
	MessageID       string        `json:"message_id" db:"message_id"`
	Translation     *string       `json:"translation,omitempty" db:"translation"`
	TranslationLang string        `json:"translation_lang,omitempty" db:"translation_lang"`
	Suggestions     []Suggestion  `json:"suggestions"`
	Extra           ArtifactExtra `json:"extra"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}
