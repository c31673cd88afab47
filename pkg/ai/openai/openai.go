package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/reno4705/docintel/pkg/ai"
)

// Client is an ai.Completer backed by an OpenAI-compatible chat
// completion endpoint. One Client is bound to one credential; upstream
// rate-limit responses are mapped to ai.ErrRateLimited so the credential
// pool can rotate.
type Client struct {
	model  string
	client *openai.Client
}

// NewClientParams contains configuration for creating a Client. BaseURL
// may point at any OpenAI-compatible service; empty means the default
// OpenAI endpoint.
type NewClientParams struct {
	BaseURL string
	APIKey  string
	Model   string
}

// NewClient creates a completion client for the given endpoint and
// credential.
func NewClient(params NewClientParams) *Client {
	options := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)

	return &Client{
		model:  params.Model,
		client: &client,
	}
}

// Complete sends a single-turn prompt and returns the generated text.
func (c *Client) Complete(
	ctx context.Context,
	prompt string,
	opts ...ai.CompleteOption,
) (string, error) {
	options := ai.CompleteOptions{
		Model:       c.model,
		Temperature: 0.3,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := []openai.ChatCompletionMessageParamUnion{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}

	response, err := c.client.Chat.Completions.New(ctx, body)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", ai.ErrRateLimited, err)
		}
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("empty completion response for model %s", options.Model)
	}

	return response.Choices[0].Message.Content, nil
}
