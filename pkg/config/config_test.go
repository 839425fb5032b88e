package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_ChatConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("CHAT_OPERATING_LANGUAGE", "vi")
	os.Setenv("CHAT_HISTORY_WINDOW", "5")
	defer func() {
		os.Unsetenv("CHAT_OPERATING_LANGUAGE")
		os.Unsetenv("CHAT_HISTORY_WINDOW")
	}()

	// Load config
	cfg, err := Load()
	assert.NoError(t, err)

	// Verify chat config
	assert.Equal(t, "vi", cfg.Chat.OperatingLanguage)
	assert.Equal(t, 5, cfg.Chat.HistoryWindow)
}

func TestLoad_Defaults(t *testing.T) {
	// Ensure env vars are cleared
	os.Unsetenv("CHAT_OPERATING_LANGUAGE")
	os.Unsetenv("CHAT_HISTORY_WINDOW")
	os.Unsetenv("OPENAI_MODEL")

	cfg, err := Load()
	assert.NoError(t, err)

	// Verify defaults
	assert.Equal(t, "ja", cfg.Chat.OperatingLanguage)
	assert.Equal(t, 10, cfg.Chat.HistoryWindow)
	assert.Equal(t, "messages:persisted", cfg.Chat.InboxChannel)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
}

func TestOpenAIConfig_ModelFor(t *testing.T) {
	cfg := OpenAIConfig{
		Model:       "gpt-4o-mini",
		VisionModel: "gpt-4o",
	}

	assert.Equal(t, "gpt-4o-mini", cfg.ModelFor("translate"))
	assert.Equal(t, "gpt-4o", cfg.ModelFor("vision"))

	cfg.TranslateModel = "gpt-4.1-mini"
	assert.Equal(t, "gpt-4.1-mini", cfg.ModelFor("translate"))
}
