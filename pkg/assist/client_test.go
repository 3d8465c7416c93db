package assist

import (
	"context"
	"testing"

	"wasender/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpamAnalysis(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantScore  float64
		wantAdvice string
	}{
		{
			name:       "valid verdict",
			input:      `{"score": 72.5, "advice": "Drop the all-caps urgency."}`,
			wantScore:  72.5,
			wantAdvice: "Drop the all-caps urgency.",
		},
		{
			name:       "empty response",
			input:      "",
			wantScore:  0,
			wantAdvice: fallbackEmptyResponse,
		},
		{
			name:       "malformed json",
			input:      `I think this message looks fine`,
			wantScore:  0,
			wantAdvice: fallbackAdvice,
		},
		{
			name:       "score clamped high",
			input:      `{"score": 250, "advice": "way too spammy"}`,
			wantScore:  100,
			wantAdvice: "way too spammy",
		},
		{
			name:       "score clamped low",
			input:      `{"score": -5, "advice": "fine"}`,
			wantScore:  0,
			wantAdvice: "fine",
		},
		{
			name:       "missing advice",
			input:      `{"score": 10}`,
			wantScore:  10,
			wantAdvice: "No advice available.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSpamAnalysis(tt.input)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantAdvice, got.Advice)
			assert.NotEmpty(t, got.Advice)
		})
	}
}

func TestNewGeminiClientRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "gemini-2.5-flash", 0, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.GetCode(err))
}

func TestDisabledGateway(t *testing.T) {
	var g Gateway = Disabled{}

	_, err := g.GenerateMessage(context.Background(), "spring sale", "friendly")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAssistAPI, errors.GetCode(err))

	verdict := g.AnalyzeSpamRisk(context.Background(), "Buy now!")
	assert.Zero(t, verdict.Score)
	assert.NotEmpty(t, verdict.Advice)
}
