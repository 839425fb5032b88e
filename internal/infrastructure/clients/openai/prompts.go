package openai

import (
	"fmt"
	"strings"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
)

func translateSystemPrompt(srcLang, dstLang string) string {
	return fmt.Sprintf(
		"You are a professional translator for workplace chat between foreign workers and their Japanese managers. "+
			"Translate the user's message from %s to %s. "+
			"Return ONLY the translated text with no explanation, no notes, and no quotation marks. "+
			"Keep the tone casual and easy to understand.",
		srcLang, dstLang,
	)
}

const healthIntentSystemPrompt = `You analyze workplace chat messages from foreign workers in Japan. Decide whether the latest message reports a health problem (illness, injury, pain, mental distress). Return ONLY valid JSON with this schema:
{
  "health_related": boolean,
  "symptom_type": string (one of: "general", "dental", "mental", "injury", "" when not health related),
  "urgency": string (one of: "immediate", "soon", "routine", "" when not health related),
  "summary": string (one short sentence describing the complaint, empty when not health related)
}
Casual small talk about being tired from work is not health related. Do not include medical advice.`

func buildHealthIntentUserPrompt(req providers.HealthIntentRequest) string {
	var b strings.Builder
	if len(req.History) > 0 {
		b.WriteString("Recent conversation:\n")
		writeHistory(&b, req.History)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Latest message (language %s): %s\n", req.Language, req.Text)
	return b.String()
}

const consultationIntentSystemPrompt = `A worker was asked whether they want to visit a medical facility. Classify their reply. Return ONLY valid JSON:
{
  "wants_consultation": boolean
}
Affirmative, hesitant-but-positive, and question-asking replies count as wanting a consultation. Clear refusals do not.`

const consultationScheduleSystemPrompt = `A worker was asked for their preferred date and time to visit a medical facility. Extract the preference from their reply. Return ONLY valid JSON:
{
  "schedule_found": boolean,
  "preferred_schedule": string (the preference in plain words, e.g. "tomorrow morning", empty when none found)
}`

func consultationSystemPrompt(stage providers.ConsultationStage) string {
	if stage == providers.StageSchedule {
		return consultationScheduleSystemPrompt
	}
	return consultationIntentSystemPrompt
}

func buildConsultationUserPrompt(req providers.ConsultationAnalysisRequest) string {
	var b strings.Builder
	if len(req.History) > 0 {
		b.WriteString("Recent conversation:\n")
		writeHistory(&b, req.History)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Worker reply (language %s): %s\n", req.Language, req.Reply)
	return b.String()
}

const segmentationSystemPrompt = `You group a workplace chat transcript into topic segments. Messages are numbered from 0. Return ONLY a valid JSON array:
[
  {
    "topic": string (short topic label),
    "summary": string (one sentence),
    "start_index": number,
    "end_index": number
  }
]
Segments must be contiguous, non-overlapping, and in order. Use 1 to 5 segments.`

func buildSegmentationUserPrompt(req providers.SegmentationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript (language %s):\n", req.Language)
	for i, turn := range req.Messages {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i, turn.Role, turn.Text)
	}
	return b.String()
}

func imageAnalysisSystemPrompt(language string) string {
	return fmt.Sprintf(
		"You describe images shared in a workplace chat between a foreign worker and their manager. "+
			"Describe what the image shows in 1-2 sentences in %s, noting anything a manager should react to "+
			"(injuries, damaged equipment, documents). Return ONLY the description.",
		language,
	)
}

func buildImageAnalysisUserPrompt(req providers.ImageAnalysisRequest) string {
	if req.Caption != "" {
		return "The sender attached this caption: " + req.Caption
	}
	return "Describe the attached image."
}

func writeHistory(b *strings.Builder, history []providers.ChatTurn) {
	for _, turn := range history {
		fmt.Fprintf(b, "[%s] %s\n", turn.Role, turn.Text)
	}
}

// fallbackSuggestionLines is the canned output served when no provider is
// configured. It goes through the same line parser as real output.
func fallbackSuggestionLines(language string) string {
	if language == "ja" {
		return "question: お仕事の調子はいかがですか？何か困っていることはありませんか？\n" +
			"empathy: いつもお疲れさまです。無理をしないでくださいね。\n" +
			"solution: 何かあればいつでも連絡してください。一緒に解決しましょう。"
	}
	return "question: How is work going? Is there anything you are having trouble with?\n" +
		"empathy: Thank you for your hard work. Please do not push yourself too hard.\n" +
		"solution: Feel free to reach out anytime. We can work it out together."
}
