// Package docstore is the in-memory document registry of the engine.
// It owns keyword extraction, full-text search, and corpus statistics;
// all model-derived analysis is attached by the extraction pipeline and
// treated as opaque here.
package docstore

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/reno4705/docintel/pkg/common"
	"github.com/reno4705/docintel/pkg/logger"
)

const keywordLimit = 20

var wordPattern = regexp.MustCompile(`\b[a-zA-Z]{4,}\b`)

var stopwords = map[string]struct{}{
	"that": {}, "this": {}, "with": {}, "were": {}, "been": {},
	"have": {}, "from": {}, "they": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "might": {}, "into": {}, "which": {},
	"their": {}, "there": {}, "here": {}, "where": {}, "when": {},
	"what": {}, "each": {}, "every": {}, "both": {}, "more": {},
	"most": {}, "other": {}, "some": {}, "such": {}, "than": {},
	"very": {}, "just": {}, "also": {}, "only": {}, "even": {},
	"back": {}, "after": {}, "before": {}, "over": {}, "under": {},
	"again": {}, "further": {}, "then": {}, "once": {}, "about": {},
}

// SearchResult pairs a document with its relevance score for a query.
type SearchResult struct {
	Document *common.Document
	Score    float64
}

// Similarity describes how close another document is to a reference
// document, measured as Jaccard similarity over extracted keywords.
type Similarity struct {
	DocumentID     string
	Score          float64
	SharedKeywords []string
}

// CorpusStats summarizes the stored corpus.
type CorpusStats struct {
	DocumentCount  int            `json:"document_count"`
	TotalWords     int            `json:"total_words"`
	TotalEntities  int            `json:"total_entities"`
	AvgWordsPerDoc float64        `json:"avg_words_per_doc"`
	TopKeywords    []KeywordCount `json:"top_keywords"`
}

// KeywordCount is a corpus-wide keyword with its document frequency.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Store holds the corpus documents. Reads and writes are safe for
// concurrent use; documents are immutable once added except for the
// attached analysis record and entity count.
type Store struct {
	mu        sync.RWMutex
	documents map[string]*common.Document
	order     []string
}

// NewStore creates an empty document store.
func NewStore() *Store {
	return &Store{
		documents: make(map[string]*common.Document),
	}
}

// Add registers a document's raw text under a fresh identifier and
// returns the stored document. Keywords are extracted once at this point.
func (s *Store) Add(name, text string) (*common.Document, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	doc := &common.Document{
		ID:         id,
		Name:       name,
		Text:       text,
		WordCount:  len(strings.Fields(text)),
		UploadedAt: time.Now(),
		Keywords:   ExtractKeywords(text, keywordLimit),
	}

	s.mu.Lock()
	s.documents[id] = doc
	s.order = append(s.order, id)
	s.mu.Unlock()

	logger.Debug("document added", "id", id, "name", name, "words", doc.WordCount)
	return doc, nil
}

// Get returns the document with the given id, or false when unknown.
func (s *Store) Get(id string) (*common.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	return doc, ok
}

// All returns the documents in upload order.
func (s *Store) All() []*common.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*common.Document, 0, len(s.order))
	for _, id := range s.order {
		docs = append(docs, s.documents[id])
	}
	return docs
}

// AttachRecord stores the analysis record on its document, overwriting
// any previous analysis, and updates the document's entity count.
func (s *Store) AttachRecord(docID string, record *common.ExtractedRecord, entityCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[docID]
	if !ok {
		return
	}
	doc.Record = record
	doc.EntityCount = entityCount
}

// SearchFullText scores all documents against the query: one point per
// query word found in the text, two extra points per query word that is
// an extracted keyword. Results are sorted by descending score.
func (s *Store) SearchFullText(query string, maxResults int) []SearchResult {
	queryWords := strings.Fields(strings.ToLower(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, id := range s.order {
		doc := s.documents[id]
		textLower := strings.ToLower(doc.Text)

		score := 0.0
		for _, word := range queryWords {
			if strings.Contains(textLower, word) {
				score++
			}
			for _, kw := range doc.Keywords {
				if kw == word {
					score += 2
					break
				}
			}
		}
		if score > 0 {
			results = append(results, SearchResult{Document: doc, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// SimilarDocuments ranks other documents by Jaccard similarity over
// extracted keywords.
func (s *Store) SimilarDocuments(docID string, topN int) []Similarity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[docID]
	if !ok {
		return nil
	}

	ref := make(map[string]struct{}, len(doc.Keywords))
	for _, kw := range doc.Keywords {
		ref[kw] = struct{}{}
	}

	var similarities []Similarity
	for _, id := range s.order {
		if id == docID {
			continue
		}
		other := s.documents[id]

		var shared []string
		union := len(ref)
		for _, kw := range other.Keywords {
			if _, ok := ref[kw]; ok {
				shared = append(shared, kw)
			} else {
				union++
			}
		}
		if len(shared) == 0 || union == 0 {
			continue
		}
		similarities = append(similarities, Similarity{
			DocumentID:     id,
			Score:          float64(len(shared)) / float64(union),
			SharedKeywords: shared,
		})
	}

	sort.SliceStable(similarities, func(i, j int) bool {
		return similarities[i].Score > similarities[j].Score
	})
	if topN > 0 && len(similarities) > topN {
		similarities = similarities[:topN]
	}
	return similarities
}

// Stats computes corpus-level statistics.
func (s *Store) Stats() CorpusStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := CorpusStats{DocumentCount: len(s.documents)}
	if stats.DocumentCount == 0 {
		return stats
	}

	keywordFreq := make(map[string]int)
	for _, doc := range s.documents {
		stats.TotalWords += doc.WordCount
		stats.TotalEntities += doc.EntityCount
		for _, kw := range doc.Keywords {
			keywordFreq[kw]++
		}
	}
	stats.AvgWordsPerDoc = float64(stats.TotalWords) / float64(stats.DocumentCount)

	for kw, count := range keywordFreq {
		stats.TopKeywords = append(stats.TopKeywords, KeywordCount{Keyword: kw, Count: count})
	}
	sort.Slice(stats.TopKeywords, func(i, j int) bool {
		if stats.TopKeywords[i].Count != stats.TopKeywords[j].Count {
			return stats.TopKeywords[i].Count > stats.TopKeywords[j].Count
		}
		return stats.TopKeywords[i].Keyword < stats.TopKeywords[j].Keyword
	})
	if len(stats.TopKeywords) > keywordLimit {
		stats.TopKeywords = stats.TopKeywords[:keywordLimit]
	}
	return stats
}

// ExtractKeywords returns the topN most frequent terms of the text,
// lowercased, at least four letters long, with stopwords removed. Ties
// are broken alphabetically so the result is deterministic.
func ExtractKeywords(text string, topN int) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	freq := make(map[string]int)
	for _, word := range words {
		if _, stop := stopwords[word]; stop {
			continue
		}
		freq[word]++
	}

	type wordCount struct {
		word  string
		count int
	}
	counts := make([]wordCount, 0, len(freq))
	for w, c := range freq {
		counts = append(counts, wordCount{w, c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].word < counts[j].word
	})

	if topN > 0 && len(counts) > topN {
		counts = counts[:topN]
	}
	keywords := make([]string, len(counts))
	for i, wc := range counts {
		keywords[i] = wc.word
	}
	return keywords
}
