// Package graph holds the knowledge graph of canonical entities and
// their relationships, together with the resolver that folds raw
// mentions into canonical identities.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agext/levenshtein"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/reno4705/docintel/pkg/common"
)

// Suggestion is a ranked near-match for an unknown entity name.
type Suggestion struct {
	Entity     *common.CanonicalEntity
	Similarity float64
}

// Store is the in-memory knowledge graph. All mutation goes through a
// single writer lock so racing extractions cannot create duplicate
// canonical entities for the same name variant. Entities and
// relationships only grow; nothing is ever deleted or split.
type Store struct {
	mu            sync.RWMutex
	entities      map[string]*common.CanonicalEntity
	relationships map[string]*common.Relationship

	// normalized name variant -> entity id, grow-only
	variants map[string]string
}

// NewStore creates an empty knowledge graph.
func NewStore() *Store {
	return &Store{
		entities:      make(map[string]*common.CanonicalEntity),
		relationships: make(map[string]*common.Relationship),
		variants:      make(map[string]string),
	}
}

// Entity returns the canonical entity with the given id.
func (s *Store) Entity(id string) (*common.CanonicalEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return e, ok
}

// Entities returns all canonical entities, sorted by descending mention
// count for stable output.
func (s *Store) Entities() []*common.CanonicalEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*common.CanonicalEntity, 0, len(s.entities))
	for _, e := range s.entities {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].MentionCount != all[j].MentionCount {
			return all[i].MentionCount > all[j].MentionCount
		}
		return all[i].Name < all[j].Name
	})
	return all
}

// EntitiesByType returns all entities of the given type.
func (s *Store) EntitiesByType(entityType string) []*common.CanonicalEntity {
	var matches []*common.CanonicalEntity
	for _, e := range s.Entities() {
		if e.Type == entityType {
			matches = append(matches, e)
		}
	}
	return matches
}

// Relationships returns all relationships in the graph.
func (s *Store) Relationships() []*common.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*common.Relationship, 0, len(s.relationships))
	for _, r := range s.relationships {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// RelationshipsOf returns the relationships touching the given entity.
func (s *Store) RelationshipsOf(entityID string) []*common.Relationship {
	var matches []*common.Relationship
	for _, r := range s.Relationships() {
		if r.SourceID == entityID || r.TargetID == entityID {
			matches = append(matches, r)
		}
	}
	return matches
}

// UpsertEntity inserts or replaces a canonical entity and registers its
// name and alias variants. It is used when restoring a persisted graph;
// live resolution goes through the Resolver instead.
func (s *Store) UpsertEntity(e *common.CanonicalEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[e.ID] = e
	s.variants[NormalizeName(e.Name)] = e.ID
	for _, alias := range e.Aliases {
		if v := NormalizeName(alias); v != "" {
			s.variants[v] = e.ID
		}
	}
}

// UpsertRelationship records a directional relationship between two
// entities, reinforced with the supporting document. Existing
// relationships with the same endpoints and label gain the document;
// they are never removed.
func (s *Store) UpsertRelationship(sourceID, targetID, label, docID string) (*common.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[sourceID]; !ok {
		return nil, fmt.Errorf("unknown source entity %s", sourceID)
	}
	if _, ok := s.entities[targetID]; !ok {
		return nil, fmt.Errorf("unknown target entity %s", targetID)
	}

	key := sourceID + "|" + targetID + "|" + label
	if rel, ok := s.relationships[key]; ok {
		rel.Documents = appendUnique(rel.Documents, docID)
		return rel, nil
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	rel := &common.Relationship{
		ID:        id,
		SourceID:  sourceID,
		TargetID:  targetID,
		Label:     label,
		Documents: []string{docID},
	}
	s.relationships[key] = rel
	return rel, nil
}

// RestoreRelationship inserts a relationship with its persisted identity
// intact. It is used when restoring a persisted graph.
func (s *Store) RestoreRelationship(rel *common.Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[rel.SourceID+"|"+rel.TargetID+"|"+rel.Label] = rel
}

// FindByName returns the entity matching the name exactly (case
// insensitive, against display name and aliases) plus the top ranked
// near-matches by string similarity. When nothing matches exactly, best
// is nil and the suggestions guide the caller.
func (s *Store) FindByName(name string) (*common.CanonicalEntity, []Suggestion) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(strings.TrimSpace(name))
	var best *common.CanonicalEntity

	var suggestions []Suggestion
	for _, e := range s.entities {
		if matchesExact(e, lower) {
			best = e
			continue
		}
		sim := levenshtein.Match(lower, strings.ToLower(e.Name), nil)
		for _, alias := range e.Aliases {
			if aliasSim := levenshtein.Match(lower, strings.ToLower(alias), nil); aliasSim > sim {
				sim = aliasSim
			}
		}
		if sim > 0.4 {
			suggestions = append(suggestions, Suggestion{Entity: e, Similarity: sim})
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Similarity != suggestions[j].Similarity {
			return suggestions[i].Similarity > suggestions[j].Similarity
		}
		return suggestions[i].Entity.Name < suggestions[j].Entity.Name
	})
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return best, suggestions
}

func matchesExact(e *common.CanonicalEntity, lower string) bool {
	if strings.ToLower(e.Name) == lower {
		return true
	}
	for _, alias := range e.Aliases {
		if strings.ToLower(alias) == lower {
			return true
		}
	}
	return false
}

// SharedDocuments returns the documents in which both entities appear.
func (s *Store) SharedDocuments(aID, bID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sharedDocumentsLocked(aID, bID)
}

func (s *Store) sharedDocumentsLocked(aID, bID string) []string {
	a, okA := s.entities[aID]
	b, okB := s.entities[bID]
	if !okA || !okB {
		return nil
	}

	inA := make(map[string]struct{}, len(a.Sources))
	for _, doc := range a.Sources {
		inA[doc] = struct{}{}
	}
	var shared []string
	for _, doc := range b.Sources {
		if _, ok := inA[doc]; ok {
			shared = append(shared, doc)
		}
	}
	sort.Strings(shared)
	return shared
}

// ConnectionStrength rates the relatedness of two entities from their
// shared documents and explicit relationships. The measure is symmetric:
// an explicit relationship in either direction counts.
func (s *Store) ConnectionStrength(aID, bID string) common.ConnectionStrength {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.relationships {
		if (r.SourceID == aID && r.TargetID == bID) || (r.SourceID == bID && r.TargetID == aID) {
			return common.StrengthStrong
		}
	}

	switch shared := len(s.sharedDocumentsLocked(aID, bID)); {
	case shared >= 4:
		return common.StrengthStrong
	case shared >= 2:
		return common.StrengthModerate
	case shared == 1:
		return common.StrengthWeak
	default:
		return common.StrengthNone
	}
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
