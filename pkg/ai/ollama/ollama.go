package ollama

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/reno4705/docintel/pkg/ai"
)

// Client is an ai.Completer backed by a locally-hosted Ollama server.
// Local inference has no credential quota, so rate-limit mapping does not
// apply here.
type Client struct {
	model  string
	client *api.Client
}

// NewClientParams contains configuration for creating a Client.
type NewClientParams struct {
	BaseURL string
	APIKey  string
	Model   string
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewClient creates a completion client for the Ollama server at BaseURL
// (or the default server if empty).
func NewClient(params NewClientParams) (*Client, error) {
	var (
		u   *url.URL
		err error
	)
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.APIKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.APIKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	return &Client{
		model:  params.Model,
		client: api.NewClient(u, httpClient),
	}, nil
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

	msgs := []api.Message{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}

	// grow the context window for prompts that exceed the default
	if tokens := ai.TokenCount(prompt) + 200; tokens > 4096 {
		req.Options["num_ctx"] = tokens
	}

	var sb strings.Builder
	if err := c.client.Chat(ctx, req, func(cr api.ChatResponse) error {
		sb.WriteString(cr.Message.Content)
		return nil
	}); err != nil {
		return "", err
	}

	return sb.String(), nil
}
