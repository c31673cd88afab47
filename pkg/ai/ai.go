package ai

import "context"

// Completer is the black-box text-completion collaborator. Implementations
// wrap one upstream inference service and one credential; rate limiting is
// reported through ErrRateLimited so the credential pool can rotate.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts ...CompleteOption) (string, error)
}

// CompleteOptions holds configuration for completion requests.
type CompleteOptions struct {
	Model         string   // Model identifier to use for the completion
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
}

// CompleteOption is a functional option for configuring completion requests.
type CompleteOption func(*CompleteOptions)

// WithModel returns a CompleteOption that sets the model to use.
func WithModel(model string) CompleteOption {
	return func(o *CompleteOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a CompleteOption that sets the system prompts
// to prepend to the request.
func WithSystemPrompts(prompts ...string) CompleteOption {
	return func(o *CompleteOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a CompleteOption that sets the sampling
// temperature. Lower values make outputs more focused and deterministic.
func WithTemperature(temp float64) CompleteOption {
	return func(o *CompleteOptions) {
		o.Temperature = temp
	}
}
