// Package trail builds the corpus-level accountability trail from
// per-document records and the knowledge graph. Aggregation is
// deterministic; synthesis goes through the analyzer and degrades to a
// partial trail when the model is unavailable.
package trail

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/sync/singleflight"

	"github.com/reno4705/docintel/pkg/ai"
	"github.com/reno4705/docintel/pkg/common"
	"github.com/reno4705/docintel/pkg/logger"
)

// DefaultDocLimit bounds how many documents feed the synthesis phase
// when the caller does not set a limit.
const DefaultDocLimit = 15

// trailResult is the shape the model must return for a trail call.
type trailResult struct {
	Summary           string                  `json:"summary" jsonschema_description:"2-3 sentence summary of what the documents reveal about accountability"`
	KeyActors         []common.KeyActor       `json:"key_actors" jsonschema_description:"Central actors with accountability level and evidence"`
	RedFlags          []common.RedFlag        `json:"red_flags" jsonschema_description:"Concerning findings with severity, evidence and implicated entities"`
	CausalChain       []common.CausalLink     `json:"causal_chain" jsonschema_description:"Cause and effect pairs with connection strength"`
	KnowledgeTimeline []common.KnowledgeEntry `json:"knowledge_timeline" jsonschema_description:"Who knew what, when, and the source document"`
	Patterns          []string                `json:"patterns" jsonschema_description:"Recurring themes or behaviors"`
	Recommendations   []string                `json:"recommendations" jsonschema_description:"Follow-up actions for the investigation"`
}

// Builder assembles accountability trails. Concurrent builds over the
// same document set collapse into a single execution.
type Builder struct {
	analyzer *ai.Analyzer
	group    singleflight.Group
}

// NewBuilderParams contains configuration for creating a Builder.
type NewBuilderParams struct {
	Analyzer *ai.Analyzer
}

// NewBuilder creates a Builder.
func NewBuilder(params NewBuilderParams) *Builder {
	return &Builder{analyzer: params.Analyzer}
}

// Build produces the accountability trail for the given documents. The
// deterministic aggregation never fails; when model synthesis fails the
// trail is returned with Partial set and the synthesis fields empty,
// never silently fabricated. Limit bounds the documents fed to
// synthesis, selected by information density; 0 means DefaultDocLimit.
func (b *Builder) Build(ctx context.Context, docs []*common.Document, limit int) (*common.AccountabilityTrail, error) {
	if limit <= 0 {
		limit = DefaultDocLimit
	}

	key := buildKey(docs, limit)
	result, err, _ := b.group.Do(key, func() (any, error) {
		return b.build(ctx, docs, limit), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*common.AccountabilityTrail), nil
}

func (b *Builder) build(ctx context.Context, docs []*common.Document, limit int) *common.AccountabilityTrail {
	trail := &common.AccountabilityTrail{
		KeyActors:         []common.KeyActor{},
		RedFlags:          []common.RedFlag{},
		Timeline:          []common.TrailEvent{},
		CausalChain:       []common.CausalLink{},
		KnowledgeTimeline: []common.KnowledgeEntry{},
		Patterns:          []string{},
		Recommendations:   []string{},
		DocumentCount:     len(docs),
		BuiltAt:           time.Now(),
	}
	if len(docs) == 0 {
		return trail
	}

	ordered := make([]*common.Document, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].UploadedAt.Before(ordered[j].UploadedAt)
	})

	trail.Timeline = aggregateTimeline(ordered)
	trail.KnowledgeTimeline = aggregateKnowledge(ordered)

	dense := selectDensest(ordered, limit)
	payload := evidencePayload(dense)

	var synthesis trailResult
	if err := b.analyzer.Analyze(ctx, ai.KindTrail, &synthesis, payload); err != nil {
		logger.Warn("trail synthesis failed, returning partial trail", "error", err)
		trail.Partial = true
		return trail
	}

	trail.Summary = synthesis.Summary
	trail.KeyActors = orEmptyActors(synthesis.KeyActors)
	trail.RedFlags = orEmptyFlags(synthesis.RedFlags)
	trail.CausalChain = orEmptyLinks(synthesis.CausalChain)
	if len(synthesis.KnowledgeTimeline) > 0 {
		trail.KnowledgeTimeline = synthesis.KnowledgeTimeline
	}
	trail.Patterns = orEmptyStrings(synthesis.Patterns)
	trail.Recommendations = orEmptyStrings(synthesis.Recommendations)
	return trail
}

// aggregateTimeline merges every record's dated events into one
// ascending timeline. Events whose dates cannot be parsed are appended
// after all dated events, keeping document upload order. Dated ties keep
// upload order too because the input is pre-sorted and the sort is
// stable.
func aggregateTimeline(ordered []*common.Document) []common.TrailEvent {
	type datedEvent struct {
		event  common.TrailEvent
		parsed time.Time
	}

	var dated []datedEvent
	var undated []common.TrailEvent

	for _, doc := range ordered {
		if doc.Record == nil || doc.Record.Failed {
			continue
		}
		for _, e := range doc.Record.Timeline {
			event := common.TrailEvent{
				Date:       e.Date,
				Event:      e.Event,
				DocumentID: doc.ID,
			}
			parsed, err := dateparse.ParseAny(e.Date)
			if err != nil || e.Date == "" {
				undated = append(undated, event)
				continue
			}
			dated = append(dated, datedEvent{event: event, parsed: parsed})
		}
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].parsed.Before(dated[j].parsed)
	})

	timeline := make([]common.TrailEvent, 0, len(dated)+len(undated))
	for _, d := range dated {
		timeline = append(timeline, d.event)
	}
	return append(timeline, undated...)
}

// aggregateKnowledge derives deterministic who-knew-what candidates from
// decisions: a recorded decision shows its maker knew of the matter by
// the document's date.
func aggregateKnowledge(ordered []*common.Document) []common.KnowledgeEntry {
	entries := []common.KnowledgeEntry{}
	for _, doc := range ordered {
		if doc.Record == nil || doc.Record.Failed {
			continue
		}
		for _, d := range doc.Record.Decisions {
			if d.DecisionMaker == "" {
				continue
			}
			entries = append(entries, common.KnowledgeEntry{
				Who:    d.DecisionMaker,
				Knew:   d.Decision,
				When:   doc.Record.Date,
				Source: doc.ID,
			})
		}
	}
	return entries
}

// selectDensest keeps the limit most information-dense documents, by
// descending word count plus weighted entity count.
func selectDensest(docs []*common.Document, limit int) []*common.Document {
	if len(docs) <= limit {
		return docs
	}
	dense := make([]*common.Document, len(docs))
	copy(dense, docs)
	sort.SliceStable(dense, func(i, j int) bool {
		return density(dense[i]) > density(dense[j])
	})
	return dense[:limit]
}

func density(doc *common.Document) int {
	return doc.WordCount + doc.EntityCount*50
}

// evidencePayload renders the per-document records as the background
// data block of the trail prompt.
func evidencePayload(docs []*common.Document) string {
	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		fmt.Fprintf(&sb, "[Document: %s]\n", doc.Name)
		record := doc.Record
		if record == nil || record.Failed {
			sb.WriteString("(analysis unavailable)\n")
			continue
		}
		fmt.Fprintf(&sb, "Type: %s | Date: %s | Organization: %s\n", record.DocumentType, record.Date, record.Organization)
		if record.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", record.Title)
		}
		for _, s := range record.Stakeholders {
			fmt.Fprintf(&sb, "Stakeholder: %s (%s)\n", s.Name, s.Role)
		}
		for _, d := range record.Decisions {
			fmt.Fprintf(&sb, "Decision: %s (by %s)\n", d.Decision, d.DecisionMaker)
		}
		for _, f := range record.Findings {
			fmt.Fprintf(&sb, "Finding: %s (%s)\n", f.Finding, f.Significance)
		}
		for _, fact := range record.KeyFacts {
			fmt.Fprintf(&sb, "Fact: %s\n", fact)
		}
		for _, e := range record.Timeline {
			fmt.Fprintf(&sb, "Event: %s: %s\n", e.Date, e.Event)
		}
	}
	return sb.String()
}

func buildKey(docs []*common.Document, limit int) string {
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	sort.Strings(ids)
	return fmt.Sprintf("%d:%s", limit, strings.Join(ids, ","))
}

func orEmptyActors(v []common.KeyActor) []common.KeyActor {
	if v == nil {
		return []common.KeyActor{}
	}
	return v
}

func orEmptyFlags(v []common.RedFlag) []common.RedFlag {
	if v == nil {
		return []common.RedFlag{}
	}
	return v
}

func orEmptyLinks(v []common.CausalLink) []common.CausalLink {
	if v == nil {
		return []common.CausalLink{}
	}
	return v
}

func orEmptyStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
