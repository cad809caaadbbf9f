package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joshharrison/ganttloom/internal/cpm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// ItemSummary is the minimal work item info sent to Claude for dependency
// inference.
type ItemSummary struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Status       cpm.Status `json:"status"`
	DurationDays *int       `json:"durationDays,omitempty"`
}

// Edge is a single inferred dependency.
type Edge struct {
	PredecessorID  string             `json:"predecessorId"`
	SuccessorID    string             `json:"successorId"`
	DependencyType cpm.DependencyType `json:"dependencyType"`
	LeadLagDays    int                `json:"leadLagDays"`
	Reason         string             `json:"reason"`
}

// Dependency converts the edge to a scheduler dependency.
func (e Edge) Dependency() cpm.Dependency {
	typ := e.DependencyType
	if typ == "" {
		typ = cpm.FinishToStart
	}
	return cpm.Dependency{
		PredecessorID:  e.PredecessorID,
		SuccessorID:    e.SuccessorID,
		DependencyType: typ,
		LeadLagDays:    e.LeadLagDays,
	}
}

// InferDepsResult holds the full response from Claude.
type InferDepsResult struct {
	Edges   []Edge `json:"edges"`
	Summary string `json:"summary"`
}

// Client wraps the Anthropic SDK for Claude API calls.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewClient creates a Claude client. apiKey defaults to ANTHROPIC_API_KEY env.
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	inner := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	if model == "" {
		model = DefaultModel
	}
	return &Client{inner: inner, model: anthropic.Model(model)}, nil
}

const inferDepsPrompt = `You are an experienced project scheduler. Given a list of work items from a project, infer the precedence dependencies between them.

Rules:
- Only add a dependency when there is a strong causal reason.
- Prefer fewer edges. Do not add transitive or speculative dependencies.
- Do not create cycles.
- Only use work item IDs from the provided list.
- A work item cannot depend on itself.
- dependencyType is one of:
  finish_to_start  (successor starts after predecessor finishes; the usual case)
  start_to_start   (successor starts after predecessor starts)
  finish_to_finish (successor finishes after predecessor finishes)
  start_to_finish  (successor finishes after predecessor starts)
- leadLagDays is a whole number of days added to the constraint; negative means overlap.

Return your answer as JSON with this exact structure:
{
  "edges": [
    {"predecessorId": "<item that constrains>", "successorId": "<item that is constrained>", "dependencyType": "finish_to_start", "leadLagDays": 0, "reason": "<short explanation>"}
  ],
  "summary": "<one paragraph summary of the dependency structure>"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here are the work items:
`

// buildPrompt constructs the full prompt for dependency inference.
func buildPrompt(items []ItemSummary) (string, error) {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}
	return inferDepsPrompt + string(data), nil
}

// InferDeps calls the Claude API to infer dependencies between work items.
func (c *Client) InferDeps(ctx context.Context, items []ItemSummary) (*InferDepsResult, error) {
	prompt, err := buildPrompt(items)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, "", prompt)
	if err != nil {
		return nil, err
	}
	return ParseInferDeps([]byte(text))
}

// ParseInferDeps decodes a dependency inference response, tolerating
// markdown fences around the JSON.
func ParseInferDeps(data []byte) (*InferDepsResult, error) {
	text := stripJSONFences(string(data))

	var result InferDepsResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse claude response: %w\nraw: %s", err, text)
	}
	return &result, nil
}

const summariseSchedulePrompt = `You are a project manager summarising a computed project schedule.

You will receive a schedule report listing each work item with its earliest and latest dates, total float, critical and late markers, followed by the critical path, the project finish date and any warnings.

Produce a short narrative covering:
- Which chain of work drives the finish date and why.
- Items that are late or have little float.
- What each warning means for the plan.

Keep it to a few short paragraphs. Do not repeat the table verbatim.
`

// SummariseSchedule sends a plain-text schedule report to Claude and returns
// a human-readable narrative of the plan's risks.
func (c *Client) SummariseSchedule(ctx context.Context, report string) (string, error) {
	text, err := c.complete(ctx, summariseSchedulePrompt, "## Schedule report\n\n"+report)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(4096),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// stripJSONFences removes markdown code fences that Claude sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
