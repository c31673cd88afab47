package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/reno4705/docintel/pkg/logger"
)

// Credential pairs a name with the Completer bound to that credential's
// upstream client.
type Credential struct {
	Name      string
	Completer Completer
}

// CredentialPool is a Completer that rotates through an ordered list of
// credentials. When the active credential reports ErrRateLimited it is
// marked cooling for a fixed window and the next credential is tried
// within the same call. When every credential is cooling the pool fails
// fast with ErrServiceUnavailable before contacting the upstream service.
//
// The rotation is transparent to callers: same call contract, no extra
// retries beyond trying each available credential once.
type CredentialPool struct {
	mu           sync.Mutex
	credentials  []Credential
	coolingUntil []time.Time
	cooldown     time.Duration
	now          func() time.Time
}

// NewCredentialPoolParams contains configuration for creating a
// CredentialPool.
type NewCredentialPoolParams struct {
	Credentials []Credential
	Cooldown    time.Duration
}

// NewCredentialPool creates a pool over the given credentials, tried in
// order. Cooldown defaults to one minute when unset.
func NewCredentialPool(params NewCredentialPoolParams) *CredentialPool {
	cooldown := params.Cooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &CredentialPool{
		credentials:  params.Credentials,
		coolingUntil: make([]time.Time, len(params.Credentials)),
		cooldown:     cooldown,
		now:          time.Now,
	}
}

// available returns the indexes of credentials not currently cooling.
func (p *CredentialPool) available() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	idx := make([]int, 0, len(p.credentials))
	for i := range p.credentials {
		if now.After(p.coolingUntil[i]) || now.Equal(p.coolingUntil[i]) {
			idx = append(idx, i)
		}
	}
	return idx
}

func (p *CredentialPool) markCooling(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coolingUntil[i] = p.now().Add(p.cooldown)
}

// Complete tries each available credential in configured order until one
// succeeds. Rate-limited credentials are cooled and skipped; other errors
// are returned to the caller unchanged.
func (p *CredentialPool) Complete(
	ctx context.Context,
	prompt string,
	opts ...CompleteOption,
) (string, error) {
	idx := p.available()
	if len(idx) == 0 {
		return "", ErrServiceUnavailable
	}

	for _, i := range idx {
		cred := p.credentials[i]
		result, err := cred.Completer.Complete(ctx, prompt, opts...)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrRateLimited) {
			logger.Warn("credential rate limited, cooling",
				"credential", cred.Name,
				"cooldown", p.cooldown,
			)
			p.markCooling(i)
			continue
		}
		return "", err
	}

	return "", ErrServiceUnavailable
}
