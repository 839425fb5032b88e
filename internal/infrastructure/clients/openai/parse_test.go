package openai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFences(tt.input))
		})
	}
}

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "object with surrounding prose",
			input: `Sure! Here is the result: {"health_related": true} Hope that helps.`,
			want:  `{"health_related": true}`,
			ok:    true,
		},
		{
			name:  "array",
			input: `[{"topic":"greetings","start_index":0,"end_index":2}]`,
			want:  `[{"topic":"greetings","start_index":0,"end_index":2}]`,
			ok:    true,
		},
		{
			name:  "nested braces inside string",
			input: `{"summary": "worker said {ouch}", "ok": true}`,
			want:  `{"summary": "worker said {ouch}", "ok": true}`,
			ok:    true,
		},
		{
			name:  "fenced object",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
			ok:    true,
		},
		{
			name:  "no json at all",
			input: "I could not produce a result.",
			ok:    false,
		},
		{
			name:  "unbalanced",
			input: `{"a": 1`,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONBlock(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLooksLikeExplanation(t *testing.T) {
	t.Run("normal translation passes", func(t *testing.T) {
		assert.False(t, looksLikeExplanation("頭が痛いです", "I have a headache"))
	})

	t.Run("denylist phrase is an explanation", func(t *testing.T) {
		assert.True(t, looksLikeExplanation("xyz", "I'm sorry, I cannot translate that."))
		assert.True(t, looksLikeExplanation("xyz", "申し訳ありませんが、翻訳できません。"))
	})

	t.Run("overlong output is an explanation", func(t *testing.T) {
		long := strings.Repeat("the quick brown fox ", 10)
		assert.True(t, looksLikeExplanation("はい", long))
	})

	t.Run("long input tolerates long output", func(t *testing.T) {
		input := strings.Repeat("本日の作業は予定どおり完了しました。", 5)
		output := strings.Repeat("Today's work was completed as planned. ", 5)
		assert.False(t, looksLikeExplanation(input, output))
	})
}
