// Package invoke provides worker implementations behind the dispatcher's
// Invoker boundary: a production client backed by the Anthropic API and a
// deterministic simulated worker for offline runs.
package invoke

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/calvinwilliamsjr/orch/internal/dispatch"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is the Claude model to use.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// MaxTokens caps the response size per invocation.
	MaxTokens int64
}

// Client invokes agents through the Anthropic Messages API. It implements
// both dispatch.Invoker and consensus.Voter.
type Client struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
	tracker   *TokenTracker
}

// NewClient creates a new Anthropic-backed invoker.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	return &Client{
		inner:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
		tracker:   NewTokenTracker(),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// Invoke implements dispatch.Invoker. The agent ID is folded into the
// system prompt so the model acts in that agent's role.
func (c *Client) Invoke(ctx context.Context, agentID string, unit *models.WorkUnit) (*dispatch.Result, error) {
	task := unit.Title
	if task == "" {
		task = unit.ID
	}
	prompt := fmt.Sprintf("Complete the following work unit and report the result.\n\nUnit %s: %s", unit.ID, task)
	if len(unit.Capabilities) > 0 {
		prompt += fmt.Sprintf("\nRequired capabilities: %s", strings.Join(unit.Capabilities, ", "))
	}

	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: c.systemPrompt(agentID)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("invoke agent %s: %w", agentID, err)
	}
	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	return &dispatch.Result{Success: true, Artifact: responseText(resp)}, nil
}

// Vote implements consensus.Voter. The model is asked for a one-word
// position; anything unparseable counts as an abstention rather than a
// non-response.
func (c *Client) Vote(ctx context.Context, agentID, topic string) (*models.Ballot, error) {
	prompt := fmt.Sprintf("Vote on the following topic. Reply with exactly one word on the first line: APPROVE, REJECT, or ABSTAIN. You may add a short rationale on subsequent lines.\n\nTopic: %s", topic)

	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: c.systemPrompt(agentID)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("collect vote from agent %s: %w", agentID, err)
	}
	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	vote, feedback := parseBallot(responseText(resp))
	return &models.Ballot{AgentID: agentID, Vote: vote, Feedback: feedback}, nil
}

func (c *Client) systemPrompt(agentID string) string {
	return fmt.Sprintf("You are the %s agent on a software team, acting within your declared role.", agentID)
}

// responseText concatenates the text blocks of a response.
func responseText(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(variant.Text)
		}
	}
	return sb.String()
}

// parseBallot extracts the vote from the first line of a response and
// returns the rest as feedback.
func parseBallot(text string) (models.Vote, string) {
	first, rest, _ := strings.Cut(strings.TrimSpace(text), "\n")
	feedback := strings.TrimSpace(rest)

	switch strings.ToLower(strings.TrimSpace(first)) {
	case "approve", "approved", "yes":
		return models.VoteApprove, feedback
	case "reject", "rejected", "no":
		return models.VoteReject, feedback
	case "abstain":
		return models.VoteAbstain, feedback
	default:
		return models.VoteAbstain, strings.TrimSpace(text)
	}
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
