package query

import (
	"context"
	"strings"
	"testing"

	"github.com/reno4705/docintel/pkg/ai"
	"github.com/reno4705/docintel/pkg/common"
	"github.com/reno4705/docintel/pkg/docstore"
	"github.com/reno4705/docintel/pkg/graph"
)

type staticCompleter struct {
	response string
	prompt   string
}

func (s *staticCompleter) Complete(ctx context.Context, prompt string, opts ...ai.CompleteOption) (string, error) {
	s.prompt = prompt
	return s.response, nil
}

type fixture struct {
	engine   *Engine
	graph    *graph.Store
	resolver *graph.Resolver
	docs     *docstore.Store
}

func newFixture(completer ai.Completer) *fixture {
	graphStore := graph.NewStore()
	docs := docstore.NewStore()
	analyzer := ai.NewAnalyzer(ai.NewAnalyzerParams{Completer: completer, Model: "test"})
	return &fixture{
		engine: NewEngine(NewEngineParams{
			Graph:    graphStore,
			Docs:     docs,
			Analyzer: analyzer,
		}),
		graph:    graphStore,
		resolver: graph.NewResolver(graph.NewResolverParams{Store: graphStore}),
		docs:     docs,
	}
}

func (f *fixture) resolve(t *testing.T, name, entityType string, docIDs ...string) *common.CanonicalEntity {
	t.Helper()
	var entity *common.CanonicalEntity
	for _, docID := range docIDs {
		e, err := f.resolver.Resolve(common.Mention{Name: name, Type: entityType, DocumentID: docID})
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		entity = e
	}
	return entity
}

func TestAskEntity_Found(t *testing.T) {
	f := newFixture(&staticCompleter{})
	smith := f.resolve(t, "John Smith", "person", "doc-1", "doc-2")
	jones := f.resolve(t, "Mary Jones", "person", "doc-1")
	if _, err := f.graph.UpsertRelationship(smith.ID, jones.ID, "reports_to", "doc-1"); err != nil {
		t.Fatalf("upsert relationship: %v", err)
	}

	answer := f.engine.AskEntity("John Smith")
	if !answer.Found {
		t.Fatal("expected entity found")
	}
	if answer.Entity.ID != smith.ID {
		t.Fatalf("expected smith, got %+v", answer.Entity)
	}
	if len(answer.Related) != 1 || answer.Related[0].Name != "Mary Jones" {
		t.Fatalf("expected Mary Jones related, got %+v", answer.Related)
	}
	if !strings.Contains(answer.Summary, "John Smith") {
		t.Fatalf("expected entity named in summary, got %q", answer.Summary)
	}
}

func TestAskEntity_UnknownYieldsSuggestions(t *testing.T) {
	f := newFixture(&staticCompleter{})
	f.resolve(t, "John Smith", "person", "doc-1")

	answer := f.engine.AskEntity("Jon Smith")
	if answer.Found {
		t.Fatal("expected not found")
	}
	if len(answer.Suggestions) == 0 || answer.Suggestions[0] != "John Smith" {
		t.Fatalf("expected John Smith suggested, got %v", answer.Suggestions)
	}
}

func TestAskConnection(t *testing.T) {
	f := newFixture(&staticCompleter{})
	smith := f.resolve(t, "John Smith", "person", "doc-1", "doc-2")
	jones := f.resolve(t, "Mary Jones", "person", "doc-1", "doc-2")
	_ = smith
	_ = jones

	answer := f.engine.AskConnection("John Smith", "Mary Jones")
	if !answer.Found {
		t.Fatal("expected connection answer")
	}
	if answer.Strength != common.StrengthModerate {
		t.Fatalf("expected moderate for 2 shared docs, got %s", answer.Strength)
	}
	if len(answer.SharedDocuments) != 2 {
		t.Fatalf("expected 2 shared documents, got %v", answer.SharedDocuments)
	}
}

func TestFindContradictions_OpposingFindings(t *testing.T) {
	f := newFixture(&staticCompleter{})

	docA, _ := f.docs.Add("report-a.txt", "Compound Z toxicity study")
	docB, _ := f.docs.Add("report-b.txt", "Compound Z follow-up")
	f.docs.AttachRecord(docA.ID, &common.ExtractedRecord{
		DocumentID: docA.ID,
		Findings:   []common.Finding{{Finding: "Compound Z is non-toxic", Significance: "clears production"}},
	}, 1)
	f.docs.AttachRecord(docB.ID, &common.ExtractedRecord{
		DocumentID: docB.ID,
		Findings:   []common.Finding{{Finding: "Compound Z is highly toxic", Significance: "halts production"}},
	}, 1)

	f.resolve(t, "Compound Z", "misc", docA.ID, docB.ID)

	contradictions := f.engine.FindContradictions()
	if len(contradictions) != 1 {
		t.Fatalf("expected 1 contradiction, got %+v", contradictions)
	}
	c := contradictions[0]
	if c.Entity != "Compound Z" {
		t.Fatalf("expected Compound Z flagged, got %s", c.Entity)
	}
	if len(c.Documents) != 2 {
		t.Fatalf("expected both documents referenced, got %v", c.Documents)
	}
}

func TestFindContradictions_SingleDocumentNotFlagged(t *testing.T) {
	f := newFixture(&staticCompleter{})

	doc, _ := f.docs.Add("report.txt", "study")
	f.docs.AttachRecord(doc.ID, &common.ExtractedRecord{
		DocumentID: doc.ID,
		Findings: []common.Finding{
			{Finding: "Compound Z is non-toxic"},
			{Finding: "Compound Z is toxic"},
		},
	}, 1)
	f.resolve(t, "Compound Z", "misc", doc.ID)

	if got := f.engine.FindContradictions(); len(got) != 0 {
		t.Fatalf("entities with one source document must not be flagged, got %+v", got)
	}
}

func TestOpposing(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"non-toxic vs toxic", "the compound is non-toxic", "residue was highly toxic", true},
		{"order reversed", "residue was highly toxic", "the compound is non-toxic", true},
		{"both non-toxic", "found non-toxic", "confirmed non-toxic", false},
		{"approved vs rejected", "the proposal was approved", "the proposal was rejected", true},
		{"negation", "results were not conclusive", "results were conclusive", true},
		{"unrelated", "the sky is blue", "grass is green", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, got := opposing(tt.a, tt.b)
			if got != tt.want {
				t.Fatalf("opposing(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAsk_DelegatesToAnalyzer(t *testing.T) {
	completer := &staticCompleter{response: `{
		"answer": "John Smith approved Study X.",
		"confidence": "high",
		"evidence": [{"document": "memo.txt", "quote": "approved Study X", "relevance": "direct statement"}],
		"limitations": "no later documents available"
	}`}
	f := newFixture(completer)
	f.docs.Add("memo.txt", "J. Smith approved Study X on 1993-09-02")

	answer, err := f.engine.Ask(context.Background(), "Who approved Study X?")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if answer.Answer == "" || answer.Confidence != "high" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if !strings.Contains(completer.prompt, "Who approved Study X?") {
		t.Fatal("expected the question in the prompt")
	}
	if !strings.Contains(completer.prompt, "memo.txt") {
		t.Fatal("expected corpus context in the prompt")
	}
}

func TestOverview(t *testing.T) {
	f := newFixture(&staticCompleter{})
	doc, _ := f.docs.Add("memo.txt", "Smith approved the study")
	smith := f.resolve(t, "John Smith", "person", doc.ID)
	board := f.resolve(t, "The Board", "organization", doc.ID)
	f.graph.UpsertRelationship(smith.ID, board.ID, "reports_to", doc.ID)

	overview := f.engine.Overview()
	if overview.Documents.DocumentCount != 1 {
		t.Fatalf("expected 1 document, got %d", overview.Documents.DocumentCount)
	}
	if overview.Entities != 2 || overview.Relationships != 1 {
		t.Fatalf("unexpected graph counts: %+v", overview)
	}
	if len(overview.TopEntities) != 2 {
		t.Fatalf("expected 2 top entities, got %+v", overview.TopEntities)
	}
	if overview.TopEntities[0].Connections < overview.TopEntities[1].Connections {
		t.Fatal("expected top entities sorted by connections")
	}
}
