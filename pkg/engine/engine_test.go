package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/reno4705/docintel/pkg/ai"
	"github.com/reno4705/docintel/pkg/common"
)

// routingCompleter matches the prompt against markers and returns the
// first scripted response whose marker occurs in it. Concurrency safe
// so it can back the bounded ingestion pool.
type routingCompleter struct {
	mu     sync.Mutex
	routes []route
	calls  []string
}

type route struct {
	marker   string
	response string
	err      error
}

func (c *routingCompleter) Complete(_ context.Context, prompt string, _ ...ai.CompleteOption) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, prompt)
	for _, r := range c.routes {
		if strings.Contains(prompt, r.marker) {
			return r.response, r.err
		}
	}
	return "", errors.New("no route for prompt")
}

const memoExtraction = `{
	"document_type": "memo",
	"title": "Study X approval",
	"date": "1993-09-02",
	"organization": "Acme Corp",
	"stakeholders": [{"name": "J. Smith", "role": "director"}],
	"decisions": [{"decision": "approve Study X", "decision_maker": "J. Smith"}],
	"findings": [{"finding": "compound rated non-toxic", "significance": "supports approval"}],
	"key_facts": ["Study X covered 200 subjects"],
	"timeline": [{"date": "1993-09-02", "event": "approval signed"}],
	"relations": []
}`

const reportExtraction = `{
	"document_type": "test_report",
	"title": "Study X results",
	"date": "1993-09-05",
	"organization": "Acme Corp",
	"stakeholders": [{"name": "John Smith", "role": "director"}],
	"decisions": [],
	"findings": [{"finding": "compound highly toxic at low doses", "significance": "contradicts approval basis"}],
	"key_facts": [],
	"timeline": [{"date": "1993-09-05", "event": "results filed"}],
	"relations": [{"from": "John Smith", "to": "Mary Jones", "label": "reported to"}]
}`

const trailSynthesis = `{
	"summary": "Smith approved Study X before the toxicity results were filed.",
	"key_actors": [{"name": "John Smith", "accountability": "high", "evidence": "signed the approval"}],
	"red_flags": [{"severity": "high", "description": "approval preceded results", "evidence": "timeline", "entities": ["John Smith"]}],
	"causal_chain": [{"cause": "approval", "effect": "exposure continued", "strength": "direct"}],
	"knowledge_timeline": [],
	"patterns": ["decisions ahead of evidence"],
	"recommendations": ["interview Smith"]
}`

func corpusCompleter() *routingCompleter {
	return &routingCompleter{routes: []route{
		{marker: "approval memo body", response: memoExtraction},
		{marker: "test report body", response: reportExtraction},
		{marker: "# Output Formatting", response: trailSynthesis},
	}}
}

func newTestEngine(completer ai.Completer) *Engine {
	analyzer := ai.NewAnalyzer(ai.NewAnalyzerParams{Completer: completer, Model: "test"})
	return NewEngine(NewEngineParams{Analyzer: analyzer, ParallelRequests: 2})
}

func ingestCorpus(t *testing.T, e *Engine) []*common.Document {
	t.Helper()
	docs, err := e.IngestDocuments(context.Background(), []DocumentInput{
		{Name: "memo.txt", Text: "approval memo body signed by J. Smith"},
		{Name: "report.txt", Text: "test report body describing toxicity"},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	return docs
}

func TestIngestDocuments_ResolvesEntitiesAcrossDocuments(t *testing.T) {
	e := newTestEngine(corpusCompleter())
	docs := ingestCorpus(t, e)

	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.Record == nil || doc.Record.Failed {
			t.Fatalf("expected successful record for %s, got %+v", doc.Name, doc.Record)
		}
	}

	var smith *common.CanonicalEntity
	for _, entity := range e.Graph().Entities() {
		if entity.Type == common.EntityPerson && strings.Contains(strings.ToLower(entity.Name), "smith") {
			if smith != nil {
				t.Fatalf("expected one Smith entity, also found %q", entity.Name)
			}
			smith = entity
		}
	}
	if smith == nil {
		t.Fatal("expected a Smith entity")
	}
	if len(smith.Sources) != 2 {
		t.Fatalf("expected Smith sourced from both documents, got %v", smith.Sources)
	}
}

func TestIngestDocuments_RelationsBecomeRelationships(t *testing.T) {
	e := newTestEngine(corpusCompleter())
	ingestCorpus(t, e)

	smith, _ := e.Graph().FindByName("John Smith")
	jones, _ := e.Graph().FindByName("Mary Jones")
	if smith == nil || jones == nil {
		t.Fatalf("expected both relation endpoints resolved, got %v / %v", smith, jones)
	}

	rels := e.Graph().RelationshipsOf(smith.ID)
	if len(rels) != 1 || rels[0].Label != "reported to" {
		t.Fatalf("expected one 'reported to' relationship, got %+v", rels)
	}
	if got := e.Graph().ConnectionStrength(smith.ID, jones.ID); got != common.StrengthStrong {
		t.Fatalf("expected strong connection, got %s", got)
	}
}

func TestIngestDocuments_FailedAnalysisDegradesPerDocument(t *testing.T) {
	completer := &routingCompleter{routes: []route{
		{marker: "approval memo body", response: memoExtraction},
		{marker: "test report body", err: errors.New("upstream exploded")},
	}}
	e := newTestEngine(completer)
	docs := ingestCorpus(t, e)

	var memo, report *common.Document
	for _, doc := range docs {
		switch doc.Name {
		case "memo.txt":
			memo = doc
		case "report.txt":
			report = doc
		}
	}
	if memo.Record == nil || memo.Record.Failed {
		t.Fatalf("expected memo analysis to succeed, got %+v", memo.Record)
	}
	if report.Record == nil || !report.Record.Failed {
		t.Fatalf("expected failure-marked record for report, got %+v", report.Record)
	}
	if report.Record.Stakeholders == nil || report.Record.Findings == nil {
		t.Fatal("expected failed record to keep its structural shape")
	}
}

func TestBuildTrail_WholeCorpus(t *testing.T) {
	e := newTestEngine(corpusCompleter())
	ingestCorpus(t, e)

	trail, err := e.BuildTrail(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if trail.Partial {
		t.Fatal("expected complete trail")
	}
	if trail.Summary == "" || len(trail.KeyActors) != 1 {
		t.Fatalf("expected synthesis fields populated, got %+v", trail)
	}
	if len(trail.Timeline) != 2 || trail.Timeline[0].Date != "1993-09-02" {
		t.Fatalf("expected merged ascending timeline, got %+v", trail.Timeline)
	}
}

func TestFindContradictions_AcrossIngestedDocuments(t *testing.T) {
	e := newTestEngine(corpusCompleter())
	ingestCorpus(t, e)

	contradictions := e.FindContradictions()
	if len(contradictions) == 0 {
		t.Fatal("expected at least one contradiction")
	}
	var smithFlagged bool
	for _, c := range contradictions {
		if strings.Contains(strings.ToLower(c.Entity), "smith") {
			smithFlagged = true
			if len(c.Documents) != 2 {
				t.Fatalf("expected both documents cited, got %v", c.Documents)
			}
		}
	}
	if !smithFlagged {
		t.Fatalf("expected Smith flagged, got %+v", contradictions)
	}
}

func TestQueryEntity_AfterIngestion(t *testing.T) {
	e := newTestEngine(corpusCompleter())
	ingestCorpus(t, e)

	answer := e.QueryEntity("John Smith")
	if !answer.Found {
		t.Fatalf("expected entity found, got %+v", answer)
	}
	if answer.Entity.MentionCount < 2 {
		t.Fatalf("expected mentions from both documents, got %d", answer.Entity.MentionCount)
	}
}

func TestExtractDocument_ReanalysisOverwritesRecord(t *testing.T) {
	completer := corpusCompleter()
	e := newTestEngine(completer)
	docs := ingestCorpus(t, e)

	var memo *common.Document
	for _, doc := range docs {
		if doc.Name == "memo.txt" {
			memo = doc
		}
	}
	first := memo.Record.AnalyzedAt

	hints := []common.Mention{{Name: "J. Smith", Type: common.EntityPerson, DocumentID: memo.ID}}
	record, err := e.ExtractDocument(context.Background(), memo.ID, hints)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !record.AnalyzedAt.After(first) && !record.AnalyzedAt.Equal(first) {
		t.Fatalf("expected refreshed analysis time, got %v before %v", record.AnalyzedAt, first)
	}
	if memo.Record != record {
		t.Fatal("expected newest record attached to the document")
	}

	completer.mu.Lock()
	last := completer.calls[len(completer.calls)-1]
	completer.mu.Unlock()
	if !strings.Contains(last, "ENTITY HINTS") || !strings.Contains(last, "J. Smith") {
		t.Fatal("expected hints forwarded to the model")
	}

	if _, err := e.ExtractDocument(context.Background(), "no-such-doc", nil); err == nil {
		t.Fatal("expected error for unknown document")
	}
}

// fakeStorage records persistence calls and serves a canned graph.
type fakeStorage struct {
	mu            sync.Mutex
	documents     []string
	records       []string
	entities      []*common.CanonicalEntity
	relationships []*common.Relationship
	loadEntities  []*common.CanonicalEntity
	loadRels      []*common.Relationship
	closed        bool
}

func (s *fakeStorage) SaveDocument(_ context.Context, doc *common.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, doc.ID)
	return nil
}

func (s *fakeStorage) SaveRecord(_ context.Context, record *common.ExtractedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.DocumentID)
	return nil
}

func (s *fakeStorage) SaveEntities(_ context.Context, entities []*common.CanonicalEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = entities
	return nil
}

func (s *fakeStorage) SaveRelationships(_ context.Context, relationships []*common.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships = relationships
	return nil
}

func (s *fakeStorage) LoadGraph(_ context.Context) ([]*common.CanonicalEntity, []*common.Relationship, error) {
	return s.loadEntities, s.loadRels, nil
}

func (s *fakeStorage) Close() {
	s.closed = true
}

func TestIngestDocuments_MirrorsToStorage(t *testing.T) {
	storage := &fakeStorage{}
	analyzer := ai.NewAnalyzer(ai.NewAnalyzerParams{Completer: corpusCompleter(), Model: "test"})
	e := NewEngine(NewEngineParams{Analyzer: analyzer, Storage: storage})
	ingestCorpus(t, e)

	if len(storage.documents) != 2 || len(storage.records) != 2 {
		t.Fatalf("expected both documents mirrored, got docs=%v records=%v", storage.documents, storage.records)
	}
	if len(storage.entities) == 0 || len(storage.relationships) == 0 {
		t.Fatal("expected graph state mirrored")
	}

	e.Close()
	if !storage.closed {
		t.Fatal("expected storage closed")
	}
}

func TestRestore_LoadsPersistedGraph(t *testing.T) {
	storage := &fakeStorage{
		loadEntities: []*common.CanonicalEntity{{
			ID:           "ent-1",
			Name:         "John Smith",
			Type:         common.EntityPerson,
			Aliases:      []string{"J. Smith"},
			Sources:      []string{"doc-1"},
			MentionCount: 2,
		}},
		loadRels: []*common.Relationship{{
			ID:        "rel-1",
			SourceID:  "ent-1",
			TargetID:  "ent-1",
			Label:     "self",
			Documents: []string{"doc-1"},
		}},
	}
	analyzer := ai.NewAnalyzer(ai.NewAnalyzerParams{Completer: corpusCompleter(), Model: "test"})
	e := NewEngine(NewEngineParams{Analyzer: analyzer, Storage: storage})

	if err := e.Restore(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	entity, ok := e.Graph().Entity("ent-1")
	if !ok || entity.MentionCount != 2 {
		t.Fatalf("expected restored entity, got %+v", entity)
	}
	if got := e.Graph().Relationships(); len(got) != 1 {
		t.Fatalf("expected restored relationship, got %+v", got)
	}
}
