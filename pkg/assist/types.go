package assist

import "context"

// SpamAnalysis is the advisory verdict on a drafted message.
type SpamAnalysis struct {
	Score  float64 `json:"score"`
	Advice string  `json:"advice"`
}

// Gateway provides AI-assisted message composition. Implementations are
// advisory only: they never block or fail the dispatch path, and on any
// upstream error they return safe defaults instead of propagating it.
type Gateway interface {
	GenerateMessage(ctx context.Context, topic, tone string) (string, error)
	AnalyzeSpamRisk(ctx context.Context, message string) SpamAnalysis
}
