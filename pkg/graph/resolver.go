package graph

import (
	"regexp"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/reno4705/docintel/pkg/common"
	"github.com/reno4705/docintel/pkg/logger"
)

// honorific tokens compared after punctuation stripping, so "Dr." and
// "Dr" both match
var honorifics = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "the": {},
}

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Resolver folds raw mentions into canonical entities. Matching is
// applied in order: exact case-insensitive match on display name or
// alias, then normalized match with honorifics, punctuation and middle
// initials stripped, then candidate match by name-token overlap with
// type agreement, and finally creation of a new entity.
//
// Merges are one-directional growth: once two mentions resolve to the
// same entity that decision is never reverted. Identically named but
// distinct real people will merge; that is a documented limitation, not
// something the resolver tries to guess its way around.
type Resolver struct {
	store     *Store
	threshold float64
}

// NewResolverParams contains configuration for creating a Resolver.
type NewResolverParams struct {
	Store *Store

	// MatchThreshold is the minimum name-token overlap for a candidate
	// merge; defaults to 0.5.
	MatchThreshold float64
}

// NewResolver creates a resolver writing into the given store.
func NewResolver(params NewResolverParams) *Resolver {
	threshold := params.MatchThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	return &Resolver{
		store:     params.Store,
		threshold: threshold,
	}
}

// Resolve maps a mention to its canonical entity, creating one when no
// existing entity matches. The entity's aliases, sources and mention
// count are updated under the store's writer lock.
func (r *Resolver) Resolve(mention common.Mention) (*common.CanonicalEntity, error) {
	name := strings.TrimSpace(mention.Name)
	if name == "" {
		return nil, nil
	}
	entityType := normalizeType(mention.Type)

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. exact case-insensitive match on name or alias
	lower := strings.ToLower(name)
	for _, e := range s.entities {
		if matchesExact(e, lower) {
			r.mergeLocked(e, name, mention.DocumentID)
			return e, nil
		}
	}

	// 2. normalized variant match
	normalized := NormalizeName(name)
	if id, ok := s.variants[normalized]; ok {
		e := s.entities[id]
		r.mergeLocked(e, name, mention.DocumentID)
		return e, nil
	}

	// 2b. candidate match: token overlap above threshold and same type
	if e := r.candidateLocked(normalized, entityType); e != nil {
		logger.Debug("merging name variant into existing entity",
			"mention", name,
			"entity", e.Name,
		)
		s.variants[normalized] = e.ID
		r.mergeLocked(e, name, mention.DocumentID)
		return e, nil
	}

	// 3. no match: new canonical entity
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	e := &common.CanonicalEntity{
		ID:           id,
		Name:         name,
		Type:         entityType,
		Aliases:      []string{name},
		Sources:      []string{mention.DocumentID},
		MentionCount: 1,
	}
	s.entities[id] = e
	s.variants[normalized] = id
	return e, nil
}

// mergeLocked records one more mention of an existing entity. Callers
// hold the store's writer lock.
func (r *Resolver) mergeLocked(e *common.CanonicalEntity, name, docID string) {
	e.Aliases = appendUniqueFold(e.Aliases, name)
	if docID != "" {
		e.Sources = appendUnique(e.Sources, docID)
	}
	e.MentionCount++
}

// candidateLocked finds an entity of the same type whose normalized name
// tokens overlap the mention's tokens above the threshold. Overlap is
// measured against the shorter token set, so "J. Smith" (normalized to
// "smith") fully overlaps "John Smith".
func (r *Resolver) candidateLocked(normalized, entityType string) *common.CanonicalEntity {
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return nil
	}

	var best *common.CanonicalEntity
	bestOverlap := 0.0
	for variant, id := range r.store.variants {
		e := r.store.entities[id]
		if e.Type != entityType {
			continue
		}
		overlap := tokenOverlap(tokens, strings.Fields(variant))
		if overlap >= r.threshold && overlap > bestOverlap {
			best = e
			bestOverlap = overlap
		}
	}
	return best
}

func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inA := make(map[string]struct{}, len(a))
	for _, t := range a {
		inA[t] = struct{}{}
	}
	shared := 0
	for _, t := range b {
		if _, ok := inA[t]; ok {
			shared++
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(shared) / float64(smaller)
}

// NormalizeName lowercases a name and strips honorifics, punctuation,
// and single-letter tokens such as middle initials.
func NormalizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	lower = punctuation.ReplaceAllString(lower, " ")
	lower = strings.TrimSpace(whitespace.ReplaceAllString(lower, " "))

	tokens := strings.Fields(lower)
	kept := make([]string, 0, len(tokens))
	for i, token := range tokens {
		if i == 0 && isHonorific(token) {
			continue
		}
		if len([]rune(token)) == 1 {
			continue
		}
		kept = append(kept, token)
	}
	if len(kept) == 0 {
		return lower
	}
	return strings.Join(kept, " ")
}

func isHonorific(token string) bool {
	_, ok := honorifics[token]
	return ok
}

func normalizeType(entityType string) string {
	switch strings.ToLower(strings.TrimSpace(entityType)) {
	case "person", "per":
		return common.EntityPerson
	case "organization", "org", "company":
		return common.EntityOrganization
	case "location", "loc", "gpe", "place":
		return common.EntityLocation
	default:
		return common.EntityMisc
	}
}

func appendUniqueFold(list []string, value string) []string {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return list
		}
	}
	return append(list, value)
}
