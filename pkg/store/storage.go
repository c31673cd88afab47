// Package store defines the optional persistence layer. The engine runs
// fully in memory; when a storage backend is configured, committed graph
// state is mirrored to it write-behind and restored on startup.
package store

import (
	"context"

	"github.com/reno4705/docintel/pkg/common"
)

// Storage persists corpus documents, analysis records, and the knowledge
// graph. Writes are best effort: the engine logs persistence errors and
// continues, so implementations must be safe to call repeatedly with the
// same data.
type Storage interface {
	SaveDocument(ctx context.Context, doc *common.Document) error
	SaveRecord(ctx context.Context, record *common.ExtractedRecord) error
	SaveEntities(ctx context.Context, entities []*common.CanonicalEntity) error
	SaveRelationships(ctx context.Context, relationships []*common.Relationship) error
	LoadGraph(ctx context.Context) ([]*common.CanonicalEntity, []*common.Relationship, error)
	Close()
}
