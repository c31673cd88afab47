package common

import "time"

// Entity types recognized by the resolver. Mentions with unknown labels
// are folded into EntityMisc.
const (
	EntityPerson       = "person"
	EntityOrganization = "organization"
	EntityLocation     = "location"
	EntityMisc         = "misc"
)

// ConnectionStrength is a qualitative measure of relatedness between two
// canonical entities, derived from shared documents and explicit
// relationships.
type ConnectionStrength string

const (
	StrengthNone     ConnectionStrength = "none"
	StrengthWeak     ConnectionStrength = "weak"
	StrengthModerate ConnectionStrength = "moderate"
	StrengthStrong   ConnectionStrength = "strong"
)

// Document is one ingested corpus document. The raw text is immutable
// once set; the attached record is overwritten on each analysis run.
type Document struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Text        string           `json:"text"`
	WordCount   int              `json:"word_count"`
	UploadedAt  time.Time        `json:"uploaded_at"`
	Keywords    []string         `json:"keywords,omitempty"`
	EntityCount int              `json:"entity_count"`
	Record      *ExtractedRecord `json:"record,omitempty"`
}

// Mention is a single occurrence of an entity name in one document,
// typically supplied by an upstream entity tagger or by extraction.
type Mention struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	DocumentID string `json:"document_id"`
}

// Stakeholder is a person or organization named in a document together
// with the role the document assigns to them.
type Stakeholder struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Decision is a recorded decision and the actor who made it.
type Decision struct {
	Decision      string `json:"decision"`
	DecisionMaker string `json:"decision_maker"`
}

// Finding is a factual finding stated in a document with its assessed
// significance.
type Finding struct {
	Finding      string `json:"finding"`
	Significance string `json:"significance"`
}

// DatedEvent is a timeline mention inside a document. Date is free text
// or ISO as it appeared in the source; it may be empty.
type DatedEvent struct {
	Date  string `json:"date"`
	Event string `json:"event"`
}

// RelationMention is an explicit relationship statement found in a
// document, such as "reports_to" or "communicates_with".
type RelationMention struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// ExtractedRecord is the structured per-document analysis. All
// collection fields are non-nil even when analysis degrades; Failed
// marks a record produced without a usable model response, which
// callers must treat as "analysis unavailable" rather than "document
// has no content".
type ExtractedRecord struct {
	DocumentID   string            `json:"document_id"`
	DocumentType string            `json:"document_type"`
	Title        string            `json:"title"`
	Date         string            `json:"date,omitempty"`
	Organization string            `json:"organization"`
	Stakeholders []Stakeholder     `json:"stakeholders"`
	Decisions    []Decision        `json:"decisions"`
	Findings     []Finding         `json:"findings"`
	KeyFacts     []string          `json:"key_facts"`
	Timeline     []DatedEvent      `json:"timeline"`
	Relations    []RelationMention `json:"relations"`
	Failed       bool              `json:"failed,omitempty"`
	AnalyzedAt   time.Time         `json:"analyzed_at"`
}

// CanonicalEntity is the deduplicated identity of one real-world person,
// organization or location across the corpus. It only grows: aliases,
// sources and the mention count are extended every time a new mention
// resolves to it.
type CanonicalEntity struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Aliases      []string `json:"aliases"`
	Sources      []string `json:"sources"`
	MentionCount int      `json:"mention_count"`
}

// Relationship is a directional edge between two canonical entities.
// Relationships are never deleted, only reinforced with additional
// supporting documents.
type Relationship struct {
	ID        string   `json:"id"`
	SourceID  string   `json:"source_id"`
	TargetID  string   `json:"target_id"`
	Label     string   `json:"label"`
	Documents []string `json:"documents"`
}

// KeyActor is an entity the trail identifies as accountable, with the
// assessed level of accountability and the strength of the evidence.
type KeyActor struct {
	Name           string `json:"name"`
	EntityID       string `json:"entity_id,omitempty"`
	Accountability string `json:"accountability"`
	Evidence       string `json:"evidence"`
}

// RedFlag is a suspicious pattern the trail surfaces, quoting the
// supporting evidence and naming the implicated entities.
type RedFlag struct {
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Evidence    string   `json:"evidence"`
	Entities    []string `json:"entities"`
}

// TrailEvent is one entry in the corpus-level timeline. Date keeps the
// source spelling; events that could not be dated sort after all dated
// ones in document upload order.
type TrailEvent struct {
	Date       string `json:"date"`
	Event      string `json:"event"`
	DocumentID string `json:"document_id"`
}

// CausalLink is a cause-and-effect pair with a qualitative strength.
type CausalLink struct {
	Cause    string `json:"cause"`
	Effect   string `json:"effect"`
	Strength string `json:"strength"`
}

// KnowledgeEntry records who knew what, when, and the document that
// shows it.
type KnowledgeEntry struct {
	Who    string `json:"who"`
	Knew   string `json:"knew"`
	When   string `json:"when"`
	Source string `json:"source"`
}

// AccountabilityTrail is the corpus-level aggregate answering who knew
// what and when. It is rebuilt wholesale on each request and is
// non-authoritative: the engine surfaces confidence, not truth. Partial
// is set when model synthesis failed and only the deterministic
// aggregates are populated.
type AccountabilityTrail struct {
	Summary           string           `json:"summary"`
	KeyActors         []KeyActor       `json:"key_actors"`
	RedFlags          []RedFlag        `json:"red_flags"`
	Timeline          []TrailEvent     `json:"timeline"`
	CausalChain       []CausalLink     `json:"causal_chain"`
	KnowledgeTimeline []KnowledgeEntry `json:"knowledge_timeline"`
	Patterns          []string         `json:"patterns"`
	Recommendations   []string         `json:"recommendations"`
	DocumentCount     int              `json:"document_count"`
	Partial           bool             `json:"partial"`
	BuiltAt           time.Time        `json:"built_at"`
}
