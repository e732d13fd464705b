// Package content invokes the LLM provider to produce post text. Calls are
// single-attempt; retry policy belongs to the dispatch side, not here.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/muaviaUsmani/cadence/internal/logger"
	"github.com/muaviaUsmani/cadence/internal/schedule"
)

// systemPrompt frames every generation request
const systemPrompt = "You are a social media copywriter. Write a single post, no preamble, no hashtag spam."

// templatePrompt is the static template used for TemplatePrompt schedules
const templatePrompt = "Write a short, engaging social media post about %s. Keep it under 280 characters."

// Generator produces post content from a prompt source
type Generator interface {
	Generate(ctx context.Context, prompt schedule.PromptSource) (string, error)
}

// Config holds LLM provider settings
type Config struct {
	// BaseURL is the provider API root (OpenAI-compatible)
	BaseURL string
	// APIKey authenticates requests
	APIKey string
	// Model selects the generation model
	Model string
	// Timeout bounds each request
	Timeout time.Duration
}

// OpenAIGenerator implements Generator against an OpenAI-compatible
// chat-completions API
type OpenAIGenerator struct {
	config Config
	client *http.Client
	log    logger.Logger
}

// NewOpenAIGenerator creates a generator
func NewOpenAIGenerator(config Config) *OpenAIGenerator {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIGenerator{
		config: config,
		client: &http.Client{Timeout: timeout},
		log:    logger.Default().WithComponent(logger.ComponentContent),
	}
}

// chatMessage is one message in a chat-completions request
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the chat-completions request body
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatResponse is the subset of the response we read
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate produces post text for a prompt source with a single API call
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt schedule.PromptSource) (string, error) {
	userPrompt, err := buildPrompt(prompt)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: g.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	url := strings.TrimRight(g.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generation API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("generation response contained no choices")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	g.log.Debug("Content generated", "model", g.config.Model, "length", len(text))
	return text, nil
}

// buildPrompt renders the user prompt from a prompt source
func buildPrompt(prompt schedule.PromptSource) (string, error) {
	switch p := prompt.(type) {
	case schedule.TemplatePrompt:
		topic := p.Topic
		if topic == "" {
			topic = "your product"
		}
		return fmt.Sprintf(templatePrompt, topic), nil
	case schedule.CustomPrompt:
		return p.Text, nil
	case nil:
		return "", fmt.Errorf("schedule has no prompt source")
	default:
		return "", fmt.Errorf("unknown prompt source type %T", prompt)
	}
}

// Ensure OpenAIGenerator implements Generator
var _ Generator = (*OpenAIGenerator)(nil)
