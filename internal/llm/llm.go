// Package llm asks Claude for bug triage suggestions and for bug reports
// extracted from free-form notes.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/bugboard/internal/models"
)

// Suggestion is the triage advice for one bug.
type Suggestion struct {
	Severity  models.Severity `json:"severity"`
	Tags      []string        `json:"tags"`
	Assignee  string          `json:"assignee,omitempty"`
	Rationale string          `json:"rationale"`
}

// ExtractedBug is a bug report found in notes.
type ExtractedBug struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Severity    models.Severity `json:"severity"`
	Tags        []string        `json:"tags"`
}

// Client wraps the Anthropic API.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

// stripFence removes a surrounding markdown code fence.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if _, rest, ok := strings.Cut(text, "\n"); ok {
		text = rest
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func severityList() string {
	names := make([]string, len(models.Severities))
	for i, s := range models.Severities {
		names[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(names, ", ")
}

// buildTriagePrompt constructs the system and user prompts for triage.
func buildTriagePrompt(b *models.Bug, knownTags []string) (system string, user string) {
	system = `You triage bug reports for a software team. Given a bug, return a JSON object with these fields:
- "severity": one of ` + severityList() + `
- "tags": up to 4 short lowercase tags naming the affected area (e.g. "auth", "ui", "performance")
- "assignee": a person from the report text if one is clearly responsible, else an empty string
- "rationale": one or two sentences explaining the severity

Rules:
- critical means data loss, security exposure or a blocked core flow with no workaround
- high means a core flow is broken or crashes but a workaround exists
- low means cosmetic issues, typos and minor annoyances
- Prefer tags from the known tags list when they fit
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if len(knownTags) > 0 {
		sb.WriteString("Known tags: ")
		sb.WriteString(strings.Join(knownTags, ", "))
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Bug #%d: %s\n", b.ID, b.Title)
	fmt.Fprintf(&sb, "Current severity: %s\n", b.Severity)
	if len(b.Tags) > 0 {
		fmt.Fprintf(&sb, "Current tags: %s\n", strings.Join(b.Tags, ", "))
	}
	sb.WriteString("\nDescription:\n")
	sb.WriteString(b.Description)
	user = sb.String()
	return
}

// parseSuggestion decodes and normalizes a triage response.
func parseSuggestion(text string) (*Suggestion, error) {
	text = stripFence(text)
	var raw struct {
		Severity  string   `json:"severity"`
		Tags      []string `json:"tags"`
		Assignee  string   `json:"assignee"`
		Rationale string   `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	sev, err := models.ParseSeverity(raw.Severity)
	if err != nil {
		return nil, fmt.Errorf("parse LLM severity: %w", err)
	}
	return &Suggestion{
		Severity:  sev,
		Tags:      models.CleanTags(raw.Tags),
		Assignee:  strings.TrimSpace(raw.Assignee),
		Rationale: strings.TrimSpace(raw.Rationale),
	}, nil
}

// Triage suggests a severity and tags for b.
func (c *Client) Triage(ctx context.Context, b *models.Bug, knownTags []string) (*Suggestion, error) {
	system, user := buildTriagePrompt(b, knownTags)
	text, err := c.complete(ctx, system, user, 1024)
	if err != nil {
		return nil, err
	}
	return parseSuggestion(text)
}

// buildExtractPrompt constructs the prompts for extracting bugs from notes.
func buildExtractPrompt(notes string) (system string, user string) {
	system = `You extract bug reports from free-form notes such as QA logs, meeting notes or support tickets. Return ONLY a JSON array of objects with these fields:
- "title": concise bug title, at most 100 characters
- "description": what goes wrong and how to reproduce it, using the original wording where possible
- "severity": one of ` + severityList() + `
- "tags": short lowercase tags naming the affected area

Rules:
- Each distinct problem is one bug; feature requests and praise are not bugs
- Default severity to "medium" unless the notes suggest otherwise
- If the notes contain no bugs, return an empty array
- Return valid JSON only, no markdown fencing or explanation`

	user = "Extract bugs from these notes:\n\n" + notes
	return
}

// parseExtracted decodes an extraction response. Entries without a title
// are dropped and unknown severities fall back to medium.
func parseExtracted(text string) ([]ExtractedBug, error) {
	text = stripFence(text)
	var raw []struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Severity    string   `json:"severity"`
		Tags        []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	out := make([]ExtractedBug, 0, len(raw))
	for _, r := range raw {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}
		sev, err := models.ParseSeverity(r.Severity)
		if err != nil {
			sev = models.SeverityMedium
		}
		desc := strings.TrimSpace(r.Description)
		if desc == "" {
			desc = title
		}
		out = append(out, ExtractedBug{
			Title:       title,
			Description: desc,
			Severity:    sev,
			Tags:        models.CleanTags(r.Tags),
		})
	}
	return out, nil
}

// ExtractBugs finds bug reports in notes.
func (c *Client) ExtractBugs(ctx context.Context, notes string) ([]ExtractedBug, error) {
	system, user := buildExtractPrompt(notes)
	text, err := c.complete(ctx, system, user, 4096)
	if err != nil {
		return nil, err
	}
	return parseExtracted(text)
}
