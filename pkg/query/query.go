// Package query answers ad-hoc questions against the knowledge graph,
// the document corpus, and the analyzer. Entity and connection lookups
// are pure graph reads; only free-form questions reach the model.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/reno4705/docintel/pkg/ai"
	"github.com/reno4705/docintel/pkg/common"
	"github.com/reno4705/docintel/pkg/docstore"
	"github.com/reno4705/docintel/pkg/graph"
)

// RelatedEntity is a neighbor in the graph, seen from a queried entity.
type RelatedEntity struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// EntityAnswer is the response to an entity lookup. When the entity is
// unknown, Found is false and Suggestions carries the ranked
// near-matches instead of an error.
type EntityAnswer struct {
	Found       bool                    `json:"found"`
	Entity      *common.CanonicalEntity `json:"entity,omitempty"`
	Related     []RelatedEntity         `json:"related,omitempty"`
	Summary     string                  `json:"summary,omitempty"`
	Suggestions []string                `json:"suggestions,omitempty"`
}

// ConnectionAnswer describes how two entities relate.
type ConnectionAnswer struct {
	Found           bool                      `json:"found"`
	A               *common.CanonicalEntity   `json:"a,omitempty"`
	B               *common.CanonicalEntity   `json:"b,omitempty"`
	Strength        common.ConnectionStrength `json:"strength,omitempty"`
	SharedDocuments []string                  `json:"shared_documents,omitempty"`
	Relationships   []*common.Relationship    `json:"relationships,omitempty"`
	Summary         string                    `json:"summary,omitempty"`
	Suggestions     []string                  `json:"suggestions,omitempty"`
}

// Contradiction flags an entity whose findings across documents contain
// opposing statements. The scan is a keyword heuristic, best effort by
// design, not a logical prover.
type Contradiction struct {
	Entity     string    `json:"entity"`
	EntityID   string    `json:"entity_id"`
	Documents  []string  `json:"documents"`
	Statements [2]string `json:"statements"`
	Keywords   [2]string `json:"keywords"`
}

// Evidence is one supporting quote inside a free-form answer.
type Evidence struct {
	Document  string `json:"document" jsonschema_description:"Document the quote comes from"`
	Quote     string `json:"quote" jsonschema_description:"Exact quote supporting the answer"`
	Relevance string `json:"relevance" jsonschema_description:"How the quote supports the answer"`
}

// FreeformAnswer is the model's evidence-based answer to a free-form
// question.
type FreeformAnswer struct {
	Answer      string     `json:"answer" jsonschema_description:"Detailed answer to the question"`
	Confidence  string     `json:"confidence" jsonschema_description:"high, medium or low"`
	Evidence    []Evidence `json:"evidence" jsonschema_description:"Supporting quotes"`
	Limitations string     `json:"limitations" jsonschema_description:"What the documents do not tell us"`
}

// TopEntity is a corpus-overview entry for a well-connected entity.
type TopEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Connections int    `json:"connections"`
	Mentions    int    `json:"mentions"`
}

// CorpusOverview summarizes the whole corpus and graph.
type CorpusOverview struct {
	Documents     docstore.CorpusStats `json:"documents"`
	Entities      int                  `json:"entities"`
	Relationships int                  `json:"relationships"`
	TopEntities   []TopEntity          `json:"top_entities"`
}

// Engine answers queries. Graph lookups never call the model.
type Engine struct {
	graph    *graph.Store
	docs     *docstore.Store
	analyzer *ai.Analyzer
}

// NewEngineParams contains configuration for creating a query Engine.
type NewEngineParams struct {
	Graph    *graph.Store
	Docs     *docstore.Store
	Analyzer *ai.Analyzer
}

// NewEngine creates a query engine.
func NewEngine(params NewEngineParams) *Engine {
	return &Engine{
		graph:    params.Graph,
		docs:     params.Docs,
		analyzer: params.Analyzer,
	}
}

// AskEntity answers "what do we know about this entity". Unknown names
// yield ranked suggestions, not an error.
func (e *Engine) AskEntity(name string) EntityAnswer {
	best, suggestions := e.graph.FindByName(name)
	if best == nil {
		return EntityAnswer{Suggestions: suggestionNames(suggestions)}
	}

	var related []RelatedEntity
	for _, rel := range e.graph.RelationshipsOf(best.ID) {
		otherID := rel.TargetID
		if otherID == best.ID {
			otherID = rel.SourceID
		}
		if other, ok := e.graph.Entity(otherID); ok {
			related = append(related, RelatedEntity{
				Name:  other.Name,
				Type:  other.Type,
				Label: rel.Label,
			})
		}
	}

	return EntityAnswer{
		Found:   true,
		Entity:  best,
		Related: related,
		Summary: entitySummary(best, related),
	}
}

// AskConnection answers "how are these two entities connected" as a pure
// graph read.
func (e *Engine) AskConnection(a, b string) ConnectionAnswer {
	entityA, suggestionsA := e.graph.FindByName(a)
	entityB, suggestionsB := e.graph.FindByName(b)
	if entityA == nil || entityB == nil {
		return ConnectionAnswer{
			Suggestions: append(suggestionNames(suggestionsA), suggestionNames(suggestionsB)...),
		}
	}

	var direct []*common.Relationship
	for _, rel := range e.graph.RelationshipsOf(entityA.ID) {
		if rel.SourceID == entityB.ID || rel.TargetID == entityB.ID {
			direct = append(direct, rel)
		}
	}
	shared := e.graph.SharedDocuments(entityA.ID, entityB.ID)

	return ConnectionAnswer{
		Found:           true,
		A:               entityA,
		B:               entityB,
		Strength:        e.graph.ConnectionStrength(entityA.ID, entityB.ID),
		SharedDocuments: shared,
		Relationships:   direct,
		Summary:         connectionSummary(entityA, entityB, direct, shared),
	}
}

// FindContradictions scans entities with two or more source documents
// for findings containing opposing keywords.
func (e *Engine) FindContradictions() []Contradiction {
	var contradictions []Contradiction

	for _, entity := range e.graph.Entities() {
		if len(entity.Sources) < 2 {
			continue
		}

		findings := e.findingsByDocument(entity.Sources)
		if c, ok := contradictionIn(entity, findings); ok {
			contradictions = append(contradictions, c)
		}
	}
	return contradictions
}

type docFinding struct {
	docID string
	text  string
}

func (e *Engine) findingsByDocument(docIDs []string) []docFinding {
	var findings []docFinding
	for _, docID := range docIDs {
		doc, ok := e.docs.Get(docID)
		if !ok || doc.Record == nil || doc.Record.Failed {
			continue
		}
		for _, f := range doc.Record.Findings {
			findings = append(findings, docFinding{docID: docID, text: f.Finding})
		}
	}
	return findings
}

func contradictionIn(entity *common.CanonicalEntity, findings []docFinding) (Contradiction, bool) {
	for i := 0; i < len(findings); i++ {
		for j := i + 1; j < len(findings); j++ {
			if findings[i].docID == findings[j].docID {
				continue
			}
			if neg, pos, ok := opposing(findings[i].text, findings[j].text); ok {
				return Contradiction{
					Entity:     entity.Name,
					EntityID:   entity.ID,
					Documents:  []string{findings[i].docID, findings[j].docID},
					Statements: [2]string{findings[i].text, findings[j].text},
					Keywords:   [2]string{neg, pos},
				}, true
			}
		}
	}
	return Contradiction{}, false
}

// Ask answers a free-form question over the full corpus, capped by the
// analyzer's truncation policy.
func (e *Engine) Ask(ctx context.Context, question string) (*FreeformAnswer, error) {
	var sb strings.Builder
	for _, doc := range e.docs.All() {
		fmt.Fprintf(&sb, "[Document: %s]\n%s\n\n", doc.Name, doc.Text)
	}

	var answer FreeformAnswer
	if err := e.analyzer.Analyze(ctx, ai.KindAnswer, &answer, sb.String(), question); err != nil {
		return nil, err
	}
	if answer.Evidence == nil {
		answer.Evidence = []Evidence{}
	}
	return &answer, nil
}

// Overview summarizes the corpus and the graph.
func (e *Engine) Overview() CorpusOverview {
	entities := e.graph.Entities()

	top := make([]TopEntity, 0, len(entities))
	for _, entity := range entities {
		top = append(top, TopEntity{
			Name:        entity.Name,
			Type:        entity.Type,
			Connections: len(e.graph.RelationshipsOf(entity.ID)),
			Mentions:    entity.MentionCount,
		})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Connections > top[j].Connections
	})
	if len(top) > 10 {
		top = top[:10]
	}

	return CorpusOverview{
		Documents:     e.docs.Stats(),
		Entities:      len(entities),
		Relationships: len(e.graph.Relationships()),
		TopEntities:   top,
	}
}

func suggestionNames(suggestions []graph.Suggestion) []string {
	names := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		names = append(names, s.Entity.Name)
	}
	return names
}

func entitySummary(entity *common.CanonicalEntity, related []RelatedEntity) string {
	summary := fmt.Sprintf("%s is a %s mentioned %d time(s) across %d document(s).",
		entity.Name, entity.Type, entity.MentionCount, len(entity.Sources))

	byLabel := make(map[string][]string)
	var labels []string
	for _, r := range related {
		if _, ok := byLabel[r.Label]; !ok {
			labels = append(labels, r.Label)
		}
		byLabel[r.Label] = append(byLabel[r.Label], r.Name)
	}
	for _, label := range labels {
		names := byLabel[label]
		if len(names) > 3 {
			names = names[:3]
		}
		summary += fmt.Sprintf(" It %s %s.",
			strings.ReplaceAll(label, "_", " "), strings.Join(names, ", "))
	}
	return summary
}

func connectionSummary(a, b *common.CanonicalEntity, direct []*common.Relationship, shared []string) string {
	switch {
	case len(direct) > 0:
		return fmt.Sprintf("%s and %s have %d direct relationship(s) and appear together in %d document(s).",
			a.Name, b.Name, len(direct), len(shared))
	case len(shared) > 0:
		return fmt.Sprintf("%s and %s are mentioned in the same %d document(s) but have no direct relationship.",
			a.Name, b.Name, len(shared))
	default:
		return fmt.Sprintf("No clear connection found between %s and %s.", a.Name, b.Name)
	}
}
