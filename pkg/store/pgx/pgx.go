// Package pgx persists the engine's state in PostgreSQL.
package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reno4705/docintel/pkg/common"
)

type pgxConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

// Storage is a store.Storage backed by PostgreSQL. The schema is
// bootstrapped on creation; all writes are idempotent upserts so
// write-behind mirroring can repeat safely.
type Storage struct {
	conn pgxConn
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	text        TEXT NOT NULL,
	word_count  INTEGER NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL,
	keywords    JSONB NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS records (
	document_id TEXT PRIMARY KEY,
	payload     JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS entities (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	type          TEXT NOT NULL,
	aliases       JSONB NOT NULL DEFAULT '[]',
	sources       JSONB NOT NULL DEFAULT '[]',
	mention_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS relationships (
	id        TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	label     TEXT NOT NULL,
	documents JSONB NOT NULL DEFAULT '[]',
	UNIQUE (source_id, target_id, label)
);
`

// NewStorage connects to the database at dsn and bootstraps the schema.
func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := &Storage{conn: pool, pool: pool}
	if _, err := s.conn.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return s, nil
}

// NewStorageWithConnection creates a Storage over an existing connection
// without bootstrapping the schema. Used in tests.
func NewStorageWithConnection(conn pgxConn) *Storage {
	return &Storage{conn: conn}
}

// Close releases the connection pool.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveDocument upserts a document's immutable fields.
func (s *Storage) SaveDocument(ctx context.Context, doc *common.Document) error {
	keywords, err := json.Marshal(doc.Keywords)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO documents (id, name, text, word_count, uploaded_at, keywords)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET keywords = EXCLUDED.keywords`,
		doc.ID, doc.Name, doc.Text, doc.WordCount, doc.UploadedAt, keywords,
	)
	return err
}

// SaveRecord upserts a document's analysis record, overwriting any
// previous analysis.
func (s *Storage) SaveRecord(ctx context.Context, record *common.ExtractedRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO records (document_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (document_id) DO UPDATE SET payload = EXCLUDED.payload`,
		record.DocumentID, payload,
	)
	return err
}

// SaveEntities upserts canonical entities.
func (s *Storage) SaveEntities(ctx context.Context, entities []*common.CanonicalEntity) error {
	for _, e := range entities {
		aliases, err := json.Marshal(e.Aliases)
		if err != nil {
			return err
		}
		sources, err := json.Marshal(e.Sources)
		if err != nil {
			return err
		}
		if _, err := s.conn.Exec(ctx, `
			INSERT INTO entities (id, name, type, aliases, sources, mention_count)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				aliases = EXCLUDED.aliases,
				sources = EXCLUDED.sources,
				mention_count = EXCLUDED.mention_count`,
			e.ID, e.Name, e.Type, aliases, sources, e.MentionCount,
		); err != nil {
			return err
		}
	}
	return nil
}

// SaveRelationships upserts relationships, reinforcing the supporting
// document set on conflict.
func (s *Storage) SaveRelationships(ctx context.Context, relationships []*common.Relationship) error {
	for _, r := range relationships {
		documents, err := json.Marshal(r.Documents)
		if err != nil {
			return err
		}
		if _, err := s.conn.Exec(ctx, `
			INSERT INTO relationships (id, source_id, target_id, label, documents)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (source_id, target_id, label) DO UPDATE SET
				documents = EXCLUDED.documents`,
			r.ID, r.SourceID, r.TargetID, r.Label, documents,
		); err != nil {
			return err
		}
	}
	return nil
}

// LoadGraph restores all persisted entities and relationships.
func (s *Storage) LoadGraph(ctx context.Context) ([]*common.CanonicalEntity, []*common.Relationship, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, name, type, aliases, sources, mention_count FROM entities`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var entities []*common.CanonicalEntity
	for rows.Next() {
		var (
			e                common.CanonicalEntity
			aliases, sources []byte
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &aliases, &sources, &e.MentionCount); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal(aliases, &e.Aliases); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal(sources, &e.Sources); err != nil {
			return nil, nil, err
		}
		entities = append(entities, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	relRows, err := s.conn.Query(ctx, `
		SELECT id, source_id, target_id, label, documents FROM relationships`)
	if err != nil {
		return nil, nil, err
	}
	defer relRows.Close()

	var relationships []*common.Relationship
	for relRows.Next() {
		var (
			r         common.Relationship
			documents []byte
		)
		if err := relRows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Label, &documents); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal(documents, &r.Documents); err != nil {
			return nil, nil, err
		}
		relationships = append(relationships, &r)
	}
	if err := relRows.Err(); err != nil {
		return nil, nil, err
	}

	return entities, relationships, nil
}
