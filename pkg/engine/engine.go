// Package engine wires the document store, analyzer, entity graph,
// trail builder, and query engine into one ingestion pipeline.
package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/reno4705/docintel/internal/util"
	"github.com/reno4705/docintel/pkg/ai"
	"github.com/reno4705/docintel/pkg/common"
	"github.com/reno4705/docintel/pkg/docstore"
	"github.com/reno4705/docintel/pkg/extract"
	"github.com/reno4705/docintel/pkg/graph"
	"github.com/reno4705/docintel/pkg/logger"
	"github.com/reno4705/docintel/pkg/query"
	"github.com/reno4705/docintel/pkg/store"
	"github.com/reno4705/docintel/pkg/trail"
)

// persistTries bounds retries per write-behind save.
const persistTries = 3

// DocumentInput is a named piece of text to ingest.
type DocumentInput struct {
	Name string
	Text string
}

type Engine struct {
	docs      *docstore.Store
	graph     *graph.Store
	resolver  *graph.Resolver
	extractor *extract.Extractor
	trails    *trail.Builder
	query     *query.Engine

	storage    store.Storage
	parallel   int
	trailLimit int
}

type NewEngineParams struct {
	Analyzer *ai.Analyzer

	// Storage is optional. When set, committed state is mirrored to it
	// write-behind; persistence errors are logged, never fatal.
	Storage store.Storage

	// ParallelRequests bounds concurrent document analyses; defaults to 2.
	ParallelRequests int

	// TrailDocLimit caps documents per trail build; defaults to
	// trail.DefaultDocLimit.
	TrailDocLimit int

	// MatchThreshold is forwarded to the entity resolver.
	MatchThreshold float64
}

// NewEngine creates an Engine with a fresh in-memory corpus and graph.
func NewEngine(params NewEngineParams) *Engine {
	if params.ParallelRequests <= 0 {
		params.ParallelRequests = 2
	}
	docs := docstore.NewStore()
	graphStore := graph.NewStore()
	return &Engine{
		docs:      docs,
		graph:     graphStore,
		resolver:  graph.NewResolver(graph.NewResolverParams{Store: graphStore, MatchThreshold: params.MatchThreshold}),
		extractor: extract.NewExtractor(extract.NewExtractorParams{Analyzer: params.Analyzer}),
		trails:    trail.NewBuilder(trail.NewBuilderParams{Analyzer: params.Analyzer}),
		query: query.NewEngine(query.NewEngineParams{
			Graph:    graphStore,
			Docs:     docs,
			Analyzer: params.Analyzer,
		}),
		storage:    params.Storage,
		parallel:   params.ParallelRequests,
		trailLimit: params.TrailDocLimit,
	}
}

// Restore loads persisted graph state into memory. A no-op without storage.
func (e *Engine) Restore(ctx context.Context) error {
	if e.storage == nil {
		return nil
	}
	entities, relationships, err := e.storage.LoadGraph(ctx)
	if err != nil {
		return err
	}
	for _, entity := range entities {
		e.graph.UpsertEntity(entity)
	}
	for _, rel := range relationships {
		e.graph.RestoreRelationship(rel)
	}
	logger.Info("engine: restored graph", "entities", len(entities), "relationships", len(relationships))
	return nil
}

// IngestDocuments adds the inputs to the corpus in order, then analyzes
// them with a bounded worker pool. A document whose analysis fails stays
// in the corpus with a failure-marked record; ingestion continues with
// the rest. The returned error is non-nil only when the context ends.
func (e *Engine) IngestDocuments(ctx context.Context, inputs []DocumentInput) ([]*common.Document, error) {
	docs := make([]*common.Document, 0, len(inputs))
	for _, input := range inputs {
		doc, err := e.docs.Add(input.Name, input.Text)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.parallel)
	for _, doc := range docs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			e.AnalyzeDocument(groupCtx, doc)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return docs, err
	}
	return docs, nil
}

// AnalyzeDocument runs extraction for one document and commits the
// results: the record is attached to the document, mentions are resolved
// into the graph, and explicit relations become graph relationships.
// Re-analysis overwrites the previous record.
func (e *Engine) AnalyzeDocument(ctx context.Context, doc *common.Document) *common.ExtractedRecord {
	return e.analyze(ctx, doc, nil)
}

// ExtractDocument re-analyzes a document by ID, optionally guided by
// entity hints from an upstream tagger.
func (e *Engine) ExtractDocument(ctx context.Context, docID string, hints []common.Mention) (*common.ExtractedRecord, error) {
	doc, ok := e.docs.Get(docID)
	if !ok {
		return nil, fmt.Errorf("unknown document %q", docID)
	}
	return e.analyze(ctx, doc, hints), nil
}

// ResolveMentions resolves mentions into canonical entities, creating
// or merging as needed.
func (e *Engine) ResolveMentions(mentions []common.Mention) []*common.CanonicalEntity {
	var entities []*common.CanonicalEntity
	for _, mention := range mentions {
		entity, err := e.resolver.Resolve(mention)
		if err != nil || entity == nil {
			continue
		}
		entities = append(entities, entity)
	}
	return entities
}

func (e *Engine) analyze(ctx context.Context, doc *common.Document, hints []common.Mention) *common.ExtractedRecord {
	record, err := e.extractor.Extract(ctx, doc, hints)
	if err != nil {
		logger.Warn("engine: document analysis failed", "document", doc.Name, "error", err)
	}

	entityCount := e.commitRecord(doc, record)
	e.docs.AttachRecord(doc.ID, record, entityCount)
	e.persistDocument(ctx, doc, record)
	return record
}

// commitRecord resolves the record's mentions and relations into the
// graph and reports how many distinct entities the document touched.
func (e *Engine) commitRecord(doc *common.Document, record *common.ExtractedRecord) int {
	seen := map[string]struct{}{}
	for _, mention := range extract.Mentions(record) {
		entity, err := e.resolver.Resolve(mention)
		if err != nil || entity == nil {
			continue
		}
		seen[entity.ID] = struct{}{}
	}
	for _, rel := range record.Relations {
		from, err := e.resolver.Resolve(common.Mention{Name: rel.From, Type: common.EntityPerson, DocumentID: doc.ID})
		if err != nil || from == nil {
			continue
		}
		to, err := e.resolver.Resolve(common.Mention{Name: rel.To, Type: common.EntityPerson, DocumentID: doc.ID})
		if err != nil || to == nil {
			continue
		}
		if _, err := e.graph.UpsertRelationship(from.ID, to.ID, rel.Label, doc.ID); err != nil {
			logger.Warn("engine: relationship rejected", "from", rel.From, "to", rel.To, "error", err)
			continue
		}
		seen[from.ID] = struct{}{}
		seen[to.ID] = struct{}{}
	}
	return len(seen)
}

// persistDocument mirrors committed state write-behind. Saves are
// retried a few times and failures only logged; persistence never
// blocks ingestion.
func (e *Engine) persistDocument(ctx context.Context, doc *common.Document, record *common.ExtractedRecord) {
	if e.storage == nil {
		return
	}
	err := util.RetryErrWithContext(ctx, persistTries, func(ctx context.Context) error {
		return e.storage.SaveDocument(ctx, doc)
	})
	if err != nil {
		logger.Warn("engine: persist document failed", "document", doc.Name, "error", err)
	}
	err = util.RetryErrWithContext(ctx, persistTries, func(ctx context.Context) error {
		return e.storage.SaveRecord(ctx, record)
	})
	if err != nil {
		logger.Warn("engine: persist record failed", "document", doc.Name, "error", err)
	}
	err = util.RetryErrWithContext(ctx, persistTries, func(ctx context.Context) error {
		return e.storage.SaveEntities(ctx, e.graph.Entities())
	})
	if err != nil {
		logger.Warn("engine: persist entities failed", "error", err)
	}
	err = util.RetryErrWithContext(ctx, persistTries, func(ctx context.Context) error {
		return e.storage.SaveRelationships(ctx, e.graph.Relationships())
	})
	if err != nil {
		logger.Warn("engine: persist relationships failed", "error", err)
	}
}

// BuildTrail builds an accountability trail over the named documents,
// or the whole corpus when docIDs is empty. Limit bounds the documents
// fed to synthesis; 0 falls back to the engine default.
func (e *Engine) BuildTrail(ctx context.Context, docIDs []string, limit int) (*common.AccountabilityTrail, error) {
	if limit <= 0 {
		limit = e.trailLimit
	}
	var docs []*common.Document
	if len(docIDs) == 0 {
		docs = e.docs.All()
	} else {
		for _, id := range docIDs {
			doc, ok := e.docs.Get(id)
			if !ok {
				logger.Warn("engine: trail references unknown document", "document", id)
				continue
			}
			docs = append(docs, doc)
		}
	}
	return e.trails.Build(ctx, docs, limit)
}

// Documents returns the corpus in upload order.
func (e *Engine) Documents() []*common.Document {
	return e.docs.All()
}

// SearchDocuments runs a full-text search over the corpus.
func (e *Engine) SearchDocuments(query string, maxResults int) []docstore.SearchResult {
	return e.docs.SearchFullText(query, maxResults)
}

// SimilarDocuments ranks documents by keyword overlap with the given one.
func (e *Engine) SimilarDocuments(docID string, topN int) []docstore.Similarity {
	return e.docs.SimilarDocuments(docID, topN)
}

// Graph exposes the entity graph for direct inspection.
func (e *Engine) Graph() *graph.Store {
	return e.graph
}

// QueryEntity answers "what do we know about this name".
func (e *Engine) QueryEntity(name string) query.EntityAnswer {
	return e.query.AskEntity(name)
}

// QueryConnection answers "how are these two names connected".
func (e *Engine) QueryConnection(a, b string) query.ConnectionAnswer {
	return e.query.AskConnection(a, b)
}

// FindContradictions scans for entities with conflicting findings.
func (e *Engine) FindContradictions() []query.Contradiction {
	return e.query.FindContradictions()
}

// Ask answers a freeform question against the corpus.
func (e *Engine) Ask(ctx context.Context, question string) (*query.FreeformAnswer, error) {
	return e.query.Ask(ctx, question)
}

// Overview summarizes the corpus and graph.
func (e *Engine) Overview() query.CorpusOverview {
	return e.query.Overview()
}

// Close releases the storage backend if one is configured.
func (e *Engine) Close() {
	if e.storage != nil {
		e.storage.Close()
	}
}
