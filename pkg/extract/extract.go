// Package extract turns one document's raw text into a structured
// per-document record through the analyzer client.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/reno4705/docintel/pkg/ai"
	"github.com/reno4705/docintel/pkg/common"
	"github.com/reno4705/docintel/pkg/logger"
)

// extractResult is the shape the model must return for an extraction
// call. It mirrors the prompt's output contract; conversion into
// common.ExtractedRecord happens after validation.
type extractResult struct {
	DocumentType string                   `json:"document_type" jsonschema_description:"Specific document type such as memo, test_report, approval_form"`
	Title        string                   `json:"title" jsonschema_description:"Exact title or subject line from the document"`
	Date         string                   `json:"date" jsonschema_description:"Primary document date, YYYY-MM-DD if possible"`
	Organization string                   `json:"organization" jsonschema_description:"Organization the document belongs to"`
	Stakeholders []common.Stakeholder     `json:"stakeholders" jsonschema_description:"Named persons and organizations with their roles"`
	Decisions    []common.Decision        `json:"decisions" jsonschema_description:"Decisions with the actor who made them"`
	Findings     []common.Finding         `json:"findings" jsonschema_description:"Findings with their significance"`
	KeyFacts     []string                 `json:"key_facts" jsonschema_description:"Specific verifiable facts stated in the document"`
	Timeline     []common.DatedEvent      `json:"timeline" jsonschema_description:"Dated events as written in the source"`
	Relations    []common.RelationMention `json:"relations" jsonschema_description:"Explicit relationship statements between actors"`
}

type classifyResult struct {
	DocumentType string `json:"document_type" jsonschema_description:"Single most specific document type"`
}

// Extractor derives per-document records via the analyzer.
type Extractor struct {
	analyzer *ai.Analyzer
}

// NewExtractorParams contains configuration for creating an Extractor.
type NewExtractorParams struct {
	Analyzer *ai.Analyzer
}

// NewExtractor creates an Extractor.
func NewExtractor(params NewExtractorParams) *Extractor {
	return &Extractor{analyzer: params.Analyzer}
}

// Extract analyzes one document and returns its structured record.
// Entity hints from an upstream tagger are appended to the payload as
// guidance, not ground truth. The model is not deterministic: re-running
// on the same text may yield a different record, and the newest record
// overwrites the previous one.
//
// On analysis failure the returned record keeps its full structural
// shape with empty collections and Failed set, so callers can tell
// "analysis unavailable" from "document has no content". The error is
// returned alongside for logging; batch callers continue.
func (e *Extractor) Extract(ctx context.Context, doc *common.Document, hints []common.Mention) (*common.ExtractedRecord, error) {
	payload := doc.Text
	if len(hints) > 0 {
		names := make([]string, 0, len(hints))
		for _, h := range hints {
			names = append(names, fmt.Sprintf("%s (%s)", h.Name, h.Type))
		}
		payload += "\n\nENTITY HINTS (from upstream tagging, verify against the text): " + strings.Join(names, ", ")
	}

	var result extractResult
	if err := e.analyzer.Analyze(ctx, ai.KindExtract, &result, payload); err != nil {
		logger.Error("document extraction failed", "document", doc.ID, "error", err)
		return failedRecord(doc.ID), err
	}

	record := &common.ExtractedRecord{
		DocumentID:   doc.ID,
		DocumentType: result.DocumentType,
		Title:        result.Title,
		Date:         result.Date,
		Organization: result.Organization,
		Stakeholders: result.Stakeholders,
		Decisions:    result.Decisions,
		Findings:     result.Findings,
		KeyFacts:     result.KeyFacts,
		Timeline:     result.Timeline,
		Relations:    result.Relations,
		AnalyzedAt:   time.Now(),
	}
	fillCollections(record)
	return record, nil
}

// Classify determines only the document type, using the lightweight
// classify prompt.
func (e *Extractor) Classify(ctx context.Context, doc *common.Document) (string, error) {
	var result classifyResult
	if err := e.analyzer.Analyze(ctx, ai.KindClassify, &result, doc.Text); err != nil {
		return "", err
	}
	return result.DocumentType, nil
}

// failedRecord keeps the schema-completeness invariant: every collection
// present and empty, Failed set.
func failedRecord(docID string) *common.ExtractedRecord {
	record := &common.ExtractedRecord{
		DocumentID: docID,
		Failed:     true,
		AnalyzedAt: time.Now(),
	}
	fillCollections(record)
	return record
}

func fillCollections(record *common.ExtractedRecord) {
	if record.Stakeholders == nil {
		record.Stakeholders = []common.Stakeholder{}
	}
	if record.Decisions == nil {
		record.Decisions = []common.Decision{}
	}
	if record.Findings == nil {
		record.Findings = []common.Finding{}
	}
	if record.KeyFacts == nil {
		record.KeyFacts = []string{}
	}
	if record.Timeline == nil {
		record.Timeline = []common.DatedEvent{}
	}
	if record.Relations == nil {
		record.Relations = []common.RelationMention{}
	}
}

// Mentions lists the entity mentions a record contributes to resolution:
// stakeholders with person/organization typing heuristics plus the
// organization itself and relation endpoints.
func Mentions(record *common.ExtractedRecord) []common.Mention {
	if record == nil || record.Failed {
		return nil
	}

	seen := make(map[string]struct{})
	var mentions []common.Mention
	add := func(name, entityType string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		mentions = append(mentions, common.Mention{
			Name:       name,
			Type:       entityType,
			DocumentID: record.DocumentID,
		})
	}

	for _, s := range record.Stakeholders {
		add(s.Name, common.EntityPerson)
	}
	for _, d := range record.Decisions {
		add(d.DecisionMaker, common.EntityPerson)
	}
	for _, r := range record.Relations {
		add(r.From, common.EntityPerson)
		add(r.To, common.EntityPerson)
	}
	add(record.Organization, common.EntityOrganization)

	return mentions
}
