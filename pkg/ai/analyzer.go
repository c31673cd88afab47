package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reno4705/docintel/pkg/logger"
)

// Analyzer turns analysis requests into deterministic prompts, calls the
// completion collaborator, and validates the response against the
// expected shape. On a parse or validation failure it retries once with a
// corrective instruction appended; a second failure degrades to a typed
// *AnalysisError instead of leaking raw upstream errors.
//
// The Analyzer is stateless; credential rotation state lives in the
// CredentialPool passed as the Completer.
type Analyzer struct {
	completer   Completer
	model       string
	tokenBudget int
}

// NewAnalyzerParams contains configuration for creating an Analyzer.
type NewAnalyzerParams struct {
	Completer   Completer
	Model       string
	TokenBudget int
}

// NewAnalyzer creates an Analyzer. TokenBudget bounds the context payload
// per call; 0 disables truncation.
func NewAnalyzer(params NewAnalyzerParams) *Analyzer {
	return &Analyzer{
		completer:   params.Completer,
		model:       params.Model,
		tokenBudget: params.TokenBudget,
	}
}

// TokenBudget returns the per-call context budget.
func (a *Analyzer) TokenBudget() int {
	return a.tokenBudget
}

// Analyze builds the prompt for kind from the payload values, calls the
// model, and unmarshals the validated response into out. The first
// payload value is the document or corpus context and is truncated
// head+tail to the token budget; remaining values fill further template
// slots verbatim.
func (a *Analyzer) Analyze(ctx context.Context, kind Kind, out any, payload ...any) error {
	if len(payload) > 0 {
		if text, ok := payload[0].(string); ok {
			payload[0] = Truncate(text, a.tokenBudget)
		}
	}

	prompt, err := buildPrompt(kind, payload...)
	if err != nil {
		return err
	}

	opts := []CompleteOption{
		WithTemperature(temperatureFor(kind)),
	}
	if a.model != "" {
		opts = append(opts, WithModel(a.model))
	}

	raw, err := a.completer.Complete(ctx, prompt, opts...)
	if err != nil {
		if errors.Is(err, ErrServiceUnavailable) {
			return err
		}
		return &AnalysisError{Kind: kind, Err: err}
	}

	parseErr := decodeValidated(raw, out)
	if parseErr == nil {
		return nil
	}

	logger.Warn("model response failed validation, retrying with correction",
		"kind", kind,
		"error", parseErr,
	)

	schema, _ := json.Marshal(GenerateSchema(out))
	corrective := prompt + fmt.Sprintf(CorrectiveInstruction, string(schema))

	raw, err = a.completer.Complete(ctx, corrective, opts...)
	if err != nil {
		if errors.Is(err, ErrServiceUnavailable) {
			return err
		}
		return &AnalysisError{Kind: kind, Err: err}
	}

	if parseErr = decodeValidated(raw, out); parseErr != nil {
		return &AnalysisError{Kind: kind, Raw: raw, Err: parseErr}
	}
	return nil
}
