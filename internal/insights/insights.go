// Package insights turns completed assessment submissions into narrative
// summaries via the model client, processed asynchronously off the outbox.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"log/slog"

	"github.com/ascenthq/ascent/internal/mailer"
	"github.com/ascenthq/ascent/pkg/insight"
	"github.com/ascenthq/ascent/pkg/repository"
)

// Generator resolves insights.generate jobs against the model.
type Generator struct {
	results repository.AssessmentRepo
	client  *insight.Client
	logger  *slog.Logger
}

func NewGenerator(results repository.AssessmentRepo, client *insight.Client, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{results: results, client: client, logger: logger}
}

type jobPayload struct {
	ResultID int64 `json:"result_id"`
}

// Handler returns the outbox handler for insights.generate jobs. With no
// model configured the handler succeeds without doing anything so jobs do
// not pile up in the dead letter table.
func (g *Generator) Handler() mailer.Handler {
	return func(ctx context.Context, j *mailer.Job) error {
		if g.client == nil {
			return nil
		}

		var payload jobPayload
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			return fmt.Errorf("decode insights payload: %w", err)
		}

		return g.generate(ctx, payload.ResultID)
	}
}

func (g *Generator) generate(ctx context.Context, resultID int64) error {
	res, err := g.results.GetResultByID(ctx, resultID)
	if err != nil {
		return fmt.Errorf("lookup result %d: %w", resultID, err)
	}
	// the row may be gone after a cascading user delete
	if res == nil {
		g.logger.Info("result gone before insight generation", "result_id", resultID)
		return nil
	}
	if res.Summary != "" {
		return nil
	}

	prompt := buildPrompt(res.ToolName, res.Scores, res.Responses)
	report, err := g.client.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generate insights for result %d: %w", resultID, err)
	}

	if err := g.results.UpdateResultInsights(ctx, resultID, report.Summary, report.Insights, report.Recommendations); err != nil {
		return fmt.Errorf("store insights for result %d: %w", resultID, err)
	}

	g.logger.Info("insights generated", "result_id", resultID)
	return nil
}

func buildPrompt(toolName string, scores, responses json.RawMessage) string {
	var b strings.Builder
	b.WriteString("You are an assessment coach. Given the scores and responses below, ")
	b.WriteString(`answer with a single JSON object: {"summary": string, "insights": [string], "recommendations": [string]}.`)
	b.WriteString("\n\n")
	if toolName != "" {
		fmt.Fprintf(&b, "Assessment: %s\n", toolName)
	}
	fmt.Fprintf(&b, "Scores: %s\n", string(scores))
	fmt.Fprintf(&b, "Responses: %s\n", string(responses))
	return b.String()
}
