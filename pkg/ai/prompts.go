package ai

import "fmt"

// Kind selects the prompt template and sampling temperature for an
// analysis call.
type Kind string

const (
	KindClassify Kind = "classify"
	KindExtract  Kind = "extract"
	KindTrail    Kind = "trail"
	KindAnswer   Kind = "answer"
)

const ClassifyPrompt = `
# Task Context
You are a document analyst sorting corporate documents by type.

# Background Data
%s

# Detailed Task Description & Rules
- Determine the single most specific document type.
- Choose from: memo, test_report, approval_form, specification, invoice, meeting_minutes, correspondence, report, other.
- Base your decision only on the document text, not on assumptions.

# Output Formatting
Return a JSON object with this structure:
{
  "document_type": "<chosen type>"
}
`

const ExtractPrompt = `
# Task Context
You are a forensic document analyst investigating corporate documents. Analyze this document with a critical eye for accountability and evidence.

# Background Data
%s

# Detailed Task Description & Rules
- Be SPECIFIC: use exact names and dates, and quote directly from the document.
- Extract every named person and organization together with the role the document assigns to them.
- Extract decisions with the actor who made them, and findings with their significance.
- Extract dated events for the timeline; keep the date spelling used in the source.
- Extract explicit relationship statements between actors (reports_to, communicated_with, approved_by, requested_from).
- Never fabricate: only report what is actually in the document. Leave lists empty when the document contains nothing for them.

# Output Formatting
Return a JSON object with this structure:
{
  "document_type": "specific type (memo, test_report, approval_form, specification, invoice, meeting_minutes, correspondence)",
  "title": "exact title or subject line from the document",
  "date": "primary date (YYYY-MM-DD format if possible)",
  "organization": "organization name",
  "stakeholders": [{"name": "EXACT name as written", "role": "author/approver/recipient/investigator/manager"}],
  "decisions": [{"decision": "exact decision made", "decision_maker": "who made it"}],
  "findings": [{"finding": "specific finding or conclusion", "significance": "why it matters for accountability"}],
  "key_facts": ["specific verifiable fact stated in the document"],
  "timeline": [{"date": "date as written", "event": "what happened"}],
  "relations": [{"from": "person A", "to": "person B", "label": "reports_to/communicated_with/approved_by/requested_from"}]
}
`

const TrailPrompt = `
# Task Context
You are an investigative analyst building an accountability case from corporate documents. The goal is to establish who knew what, and when.

# Background Data
%s

# Detailed Task Description & Rules
- Work only from the document evidence above; never fabricate names, quotes, or dates.
- Identify the key actors and rate how central each is (accountability high/medium/low) with the strength of the documentary evidence.
- Surface red flags: concerning findings with severity (critical/high/medium/low), a supporting quote, and the implicated actors.
- Build the causal chain of decisions and outcomes; rate each connection direct/indirect/implied.
- Build the knowledge timeline: for each point in time, who demonstrably knew what, and which document shows it.
- Name recurring patterns of behavior and concrete follow-up recommendations for the investigation.

# Output Formatting
Return a JSON object with this structure:
{
  "summary": "2-3 sentence summary of what these documents reveal about accountability",
  "key_actors": [{"name": "person name", "accountability": "high/medium/low", "evidence": "what the documents show they knew and did"}],
  "red_flags": [{"severity": "critical/high/medium/low", "description": "concerning finding", "evidence": "supporting quote", "entities": ["implicated names"]}],
  "causal_chain": [{"cause": "earlier event or decision", "effect": "resulting outcome", "strength": "direct/indirect/implied"}],
  "knowledge_timeline": [{"who": "name", "knew": "specific knowledge", "when": "date", "source": "document"}],
  "patterns": ["recurring theme or behavior with its significance"],
  "recommendations": ["specific follow-up action for the investigation"]
}
`

const AnswerPrompt = `
# Task Context
You are a research analyst providing evidence-based answers about a corpus of corporate documents.

# Background Data
%s

# Immediate Task Description or Request
QUESTION: %s

# Detailed Task Description & Rules
- Answer only from the documents above; include EXACT quotes supporting the answer.
- State your confidence (high/medium/low) and what the documents do not tell us.

# Output Formatting
Return a JSON object with this structure:
{
  "answer": "your detailed answer",
  "confidence": "high/medium/low",
  "evidence": [{"document": "document name", "quote": "EXACT supporting quote", "relevance": "how this supports the answer"}],
  "limitations": "what the documents don't tell us"
}
`

// CorrectiveInstruction is appended to the prompt on the single retry
// after a parse or validation failure.
const CorrectiveInstruction = `
# Correction
Your previous response was not valid JSON matching the required structure (%s).
Respond again with ONLY a single valid JSON object in exactly the structure specified above. No prose, no code fences.
`

func buildPrompt(kind Kind, payload ...any) (string, error) {
	switch kind {
	case KindClassify:
		return fmt.Sprintf(ClassifyPrompt, payload...), nil
	case KindExtract:
		return fmt.Sprintf(ExtractPrompt, payload...), nil
	case KindTrail:
		return fmt.Sprintf(TrailPrompt, payload...), nil
	case KindAnswer:
		return fmt.Sprintf(AnswerPrompt, payload...), nil
	default:
		return "", fmt.Errorf("unknown prompt kind %q", kind)
	}
}

func temperatureFor(kind Kind) float64 {
	switch kind {
	case KindClassify, KindExtract:
		return 0.1
	case KindTrail:
		return 0.2
	default:
		return 0.3
	}
}
