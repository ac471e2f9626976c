// Package postgres implements ledger.Store on a single JSONB documents table.
// Change subscriptions ride on LISTEN/NOTIFY: a trigger announces the touched
// collection and subscribers re-run their query against the fresh snapshot.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/subtrack/family-services/ledger"
)

var fieldNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Store is a Postgres-backed ledger.Store.
type Store struct {
	db      *sql.DB
	connStr string
	log     *zerolog.Logger
}

// NewStore opens the database connection and verifies it with a ping.
func NewStore(connStr string, log *zerolog.Logger) (*Store, error) {
	if connStr == "" {
		log.Error().Msg("database connection string is not set")
		return nil, fmt.Errorf("database connection string is not set")
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database connection")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Database connection failed during ping")
		return nil, err
	}

	return &Store{db: db, connStr: connStr, log: log}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	s.log.Info().Msg("database connection closed")
	return nil
}

func (s *Store) Get(ctx context.Context, collection string, id uuid.UUID) (*ledger.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT revision, data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)

	doc := ledger.Document{ID: id}
	if err := row.Scan(&doc.Revision, &doc.Data); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning document: %w", err)
	}
	return &doc, nil
}

func (s *Store) Query(ctx context.Context, collection string, predicates ...ledger.Predicate) ([]ledger.Document, error) {
	query := `SELECT id, revision, data FROM documents WHERE collection = $1`
	args := []interface{}{collection}

	for _, p := range predicates {
		if !fieldNameRegex.MatchString(p.Field) {
			return nil, fmt.Errorf("invalid predicate field %q", p.Field)
		}
		switch p.Op {
		case ledger.OpEqual:
			query += fmt.Sprintf(" AND data->>'%s' = $%d", p.Field, len(args)+1)
			args = append(args, fmt.Sprint(p.Value))
		case ledger.OpContains:
			value, err := json.Marshal(p.Value)
			if err != nil {
				return nil, fmt.Errorf("error encoding predicate value: %w", err)
			}
			query += fmt.Sprintf(" AND data->'%s' @> $%d::jsonb", p.Field, len(args)+1)
			args = append(args, string(value))
		default:
			return nil, fmt.Errorf("unsupported predicate operator %q", p.Op)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying documents: %w", err)
	}
	defer rows.Close()

	var docs []ledger.Document
	for rows.Next() {
		var doc ledger.Document
		if err := rows.Scan(&doc.ID, &doc.Revision, &doc.Data); err != nil {
			return nil, fmt.Errorf("error scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Create(ctx context.Context, collection string, data interface{}) (uuid.UUID, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error encoding document: %w", err)
	}

	// The store assigns the identifier; stamp it into the body so the stored
	// document is self-describing.
	id := uuid.New()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, revision, data)
		 VALUES ($1, $2, 1, jsonb_set($3::jsonb, '{id}', to_jsonb($2::text)))`,
		collection, id, body)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error inserting document: %w", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection string, id uuid.UUID, revision int64, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error encoding document: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = $1, revision = revision + 1, updated_at = now()
		 WHERE collection = $2 AND id = $3 AND revision = $4`,
		body, collection, id, revision)
	if err != nil {
		return fmt.Errorf("error updating document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking update result: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a concurrent writer from a missing document.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("error checking document existence: %w", err)
	}
	if !exists {
		return ledger.ErrNotFound
	}
	return ledger.ErrRevisionConflict
}

func (s *Store) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking delete result: %w", err)
	}
	if affected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// Subscribe listens on the ledger_changes channel and pushes a fresh snapshot
// whenever the collection is touched. Delivery is at-least-once; missed
// notifications during a listener reconnect are covered by the periodic
// re-query pq.Listener performs on reconnection.
func (s *Store) Subscribe(ctx context.Context, collection string, predicates []ledger.Predicate, onChange ledger.OnChange) (func(), error) {
	listener := pq.NewListener(s.connStr, 10*time.Second, time.Minute, nil)
	if err := listener.Listen("ledger_changes"); err != nil {
		listener.Close()
		return nil, fmt.Errorf("error listening for ledger changes: %w", err)
	}

	done := make(chan struct{})

	push := func() {
		docs, err := s.Query(ctx, collection, predicates...)
		if err != nil {
			s.log.Error().Err(err).Str("collection", collection).Msg("error refreshing subscription snapshot")
			return
		}
		onChange(docs)
	}

	// Initial snapshot before any notification arrives.
	push()

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// n is nil after a connection loss; re-query to resync.
				if n == nil || n.Extra == collection {
					push()
				}
			}
		}
	}()

	return func() {
		close(done)
		if err := listener.Close(); err != nil {
			s.log.Warn().Err(err).Msg("error closing change listener")
		}
	}, nil
}
