// Package drafter turns a short typed description into an issue title
// and body.
//
// The primary implementation asks Claude; every call is bounded by a
// deadline and degrades to a deterministic template on timeout or API
// failure, so create never blocks on the model.
package drafter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultTimeout bounds a single draft call before falling back.
const DefaultTimeout = 30 * time.Second

const systemPrompt = "You draft software issue reports. Respond with the issue title on the " +
	"first line and the body on the following lines. No preamble, no markdown fences."

// Anthropic drafts issue text with the Claude API.
type Anthropic struct {
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

// New creates a drafter. model and timeout fall back to sensible
// defaults when zero.
func New(apiKey, model string, timeout time.Duration) *Anthropic {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := anthropic.ModelClaudeSonnet4_20250514
	if model != "" {
		m = anthropic.Model(model)
	}
	return &Anthropic{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   m,
		timeout: timeout,
	}
}

// Draft produces a title and body for the described issue. On timeout or
// API failure it returns the deterministic template instead of an error:
// a slow model must not stall the create flow.
func (d *Anthropic) Draft(ctx context.Context, kind, description, repo string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Draft a %s issue for repository %s.\n\nDescription: %s", kind, repo, description)
	msg, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     d.model,
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		title, body := Template(kind, description)
		return title, body, nil
	}

	title, body, ok := parseDraft(msg)
	if !ok {
		title, body = Template(kind, description)
	}
	return title, body, nil
}

// parseDraft extracts title and body from the model response: first
// non-empty line is the title, the rest is the body.
func parseDraft(msg *anthropic.Message) (string, string, bool) {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	lines := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return "", "", false
	}
	title := strings.TrimSpace(lines[0])
	body := ""
	if len(lines) == 2 {
		body = strings.TrimSpace(lines[1])
	}
	return title, body, true
}

// Template is the deterministic fallback draft. Same inputs, same output.
func Template(kind, description string) (title, body string) {
	title = fmt.Sprintf("%s: %s", kind, firstLine(description))
	body = fmt.Sprintf("## Description\n\n%s\n\n_Drafted from template._", description)
	return title, body
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}
