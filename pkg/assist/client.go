package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wasender/internal/errors"
	"wasender/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	fallbackAdvice        = "Unable to analyze message right now."
	fallbackEmptyResponse = "No response from the model."
)

// GeminiClient implements Gateway against the Gemini API. Upstream calls run
// behind a circuit breaker so a degraded model endpoint cannot pile up
// requests.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "assist API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		timeout: timeout,
		breaker: breaker,
		logger:  logger,
	}, nil
}

// GenerateMessage asks the model for a short marketing message on the topic.
func (g *GeminiClient) GenerateMessage(ctx context.Context, topic, tone string) (string, error) {
	prompt := fmt.Sprintf(
		`Write a short, engaging WhatsApp marketing message about %q. The tone should be %s. Include relevant emojis. Keep it under 500 characters. Do not include a subject line, just the message body.`,
		topic, tone)

	var text string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.client.Models.GenerateContent(callCtx, g.model, genai.Text(prompt), nil)
		if err != nil {
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		g.logger.WithError(err).Warn("Message generation failed")
		return "", errors.Wrap(err, errors.ErrCodeAssistAPI, "message generation failed")
	}
	if text == "" {
		return "", errors.New(errors.ErrCodeAssistAPI, fallbackEmptyResponse)
	}

	return text, nil
}

// AnalyzeSpamRisk scores a drafted message for spam likelihood. The call is
// advisory: every failure mode collapses to {score: 0, advice: <reason>} so
// composition is never blocked by the model.
func (g *GeminiClient) AnalyzeSpamRisk(ctx context.Context, message string) SpamAnalysis {
	prompt := fmt.Sprintf(
		`Analyze the following WhatsApp message for spam likelihood. Return a JSON object with a "score" (0-100, where 100 is high spam risk) and "advice" (short string on how to improve it). Message: %q`,
		message)

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"score":  {Type: genai.TypeNumber},
				"advice": {Type: genai.TypeString},
			},
		},
	}

	var text string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.client.Models.GenerateContent(callCtx, g.model, genai.Text(prompt), config)
		if err != nil {
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		g.logger.WithError(err).Warn("Spam analysis failed")
		return SpamAnalysis{Score: 0, Advice: fallbackAdvice}
	}

	return ParseSpamAnalysis(text)
}

// ParseSpamAnalysis decodes the model's JSON verdict. Malformed or incomplete
// output never surfaces as an error, only as the safe default verdict.
func ParseSpamAnalysis(text string) SpamAnalysis {
	if text == "" {
		return SpamAnalysis{Score: 0, Advice: fallbackEmptyResponse}
	}

	var verdict SpamAnalysis
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return SpamAnalysis{Score: 0, Advice: fallbackAdvice}
	}

	if verdict.Score < 0 {
		verdict.Score = 0
	}
	if verdict.Score > 100 {
		verdict.Score = 100
	}
	if verdict.Advice == "" {
		verdict.Advice = "No advice available."
	}
	return verdict
}

// Disabled is the Gateway used when no assist API key is configured.
type Disabled struct{}

func (Disabled) GenerateMessage(ctx context.Context, topic, tone string) (string, error) {
	return "", errors.New(errors.ErrCodeAssistAPI, "content assist is not configured")
}

func (Disabled) AnalyzeSpamRisk(ctx context.Context, message string) SpamAnalysis {
	return SpamAnalysis{Score: 0, Advice: "Content assist is not configured."}
}
