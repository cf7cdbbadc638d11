package gigachat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonathan/greeting-personalizer/internal/llm"
)

const jsonTemperature float32 = 0.1

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model        string        `json:"model"`
	Messages     []chatMessage `json:"messages"`
	Temperature  *float32      `json:"temperature,omitempty"`
	FunctionCall string        `json:"function_call,omitempty"`
}

type functionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type attachment struct {
	FileID string `json:"file_id"`
	ID     string `json:"id"`
}

type replyMessage struct {
	Role         string        `json:"role"`
	Content      string        `json:"content"`
	FunctionCall *functionCall `json:"function_call,omitempty"`
	Attachments  []attachment  `json:"attachments,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      replyMessage `json:"message"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
}

// chat sends a single user message and returns the first choice.
func (c *Client) chat(ctx context.Context, req chatRequest) (*replyMessage, error) {
	data, err := c.call(ctx, http.MethodPost, "/chat/completions", "application/json", req)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("gigachat returned no choices")
	}
	return &resp.Choices[0].Message, nil
}

func (c *Client) complete(ctx context.Context, prompt string, tier llm.ModelTier, temperature float32) (string, error) {
	msg, err := c.chat(ctx, chatRequest{
		Model:       c.GetModel(tier),
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return "", errors.New("gigachat returned an empty completion")
	}
	return text, nil
}

// GenerateContent returns the trimmed completion for prompt.
func (c *Client) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return c.complete(ctx, prompt, tier, c.models.Temperature)
}

// GenerateJSON asks for a low-temperature completion and strips markdown
// fences or surrounding prose from the reply.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	text, err := c.complete(ctx, prompt, tier, jsonTemperature)
	if err != nil {
		return "", err
	}
	return llm.CleanJSONBlock(text), nil
}
