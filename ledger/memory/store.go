// Package memory provides an in-process ledger.Store used by tests and local
// development. Semantics match the Postgres store: per-document revisions,
// whole-document updates, and snapshot-based change subscriptions.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/subtrack/family-services/ledger"
)

type document struct {
	revision int64
	data     json.RawMessage
}

type subscriber struct {
	id         int
	collection string
	predicates []ledger.Predicate
	onChange   ledger.OnChange
}

// Store is an in-memory ledger.Store.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[uuid.UUID]*document
	subscribers map[int]*subscriber
	nextSub     int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[uuid.UUID]*document),
		subscribers: make(map[int]*subscriber),
	}
}

func (s *Store) Get(ctx context.Context, collection string, id uuid.UUID) (*ledger.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &ledger.Document{ID: id, Revision: doc.revision, Data: append(json.RawMessage(nil), doc.data...)}, nil
}

func (s *Store) Query(ctx context.Context, collection string, predicates ...ledger.Predicate) ([]ledger.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(collection, predicates), nil
}

func (s *Store) queryLocked(collection string, predicates []ledger.Predicate) []ledger.Document {
	var docs []ledger.Document
	for id, doc := range s.collections[collection] {
		if matches(doc.data, predicates) {
			docs = append(docs, ledger.Document{
				ID:       id,
				Revision: doc.revision,
				Data:     append(json.RawMessage(nil), doc.data...),
			})
		}
	}
	return docs
}

func (s *Store) Create(ctx context.Context, collection string, data interface{}) (uuid.UUID, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error encoding document: %w", err)
	}

	// The store assigns the identifier; stamp it into the body so the stored
	// document is self-describing.
	id := uuid.New()
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return uuid.Nil, fmt.Errorf("error decoding document body: %w", err)
	}
	fields["id"] = id.String()
	body, err = json.Marshal(fields)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error encoding document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[uuid.UUID]*document)
	}
	s.collections[collection][id] = &document{revision: 1, data: body}
	s.notifyLocked(collection)
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection string, id uuid.UUID, revision int64, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error encoding document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return ledger.ErrNotFound
	}
	if doc.revision != revision {
		return ledger.ErrRevisionConflict
	}
	doc.revision++
	doc.data = body
	s.notifyLocked(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.collections[collection], id)
	s.notifyLocked(collection)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, predicates []ledger.Predicate, onChange ledger.OnChange) (func(), error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = &subscriber{
		id:         id,
		collection: collection,
		predicates: predicates,
		onChange:   onChange,
	}
	snapshot := s.queryLocked(collection, predicates)
	s.mu.Unlock()

	onChange(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = make(map[int]*subscriber)
	return nil
}

func (s *Store) notifyLocked(collection string) {
	for _, sub := range s.subscribers {
		if sub.collection != collection {
			continue
		}
		snapshot := s.queryLocked(collection, sub.predicates)
		go sub.onChange(snapshot)
	}
}

// matches evaluates predicates against the raw document body. Values are
// compared by their string form, the same normalization the Postgres store
// applies with ->> operators.
func matches(data json.RawMessage, predicates []ledger.Predicate) bool {
	if len(predicates) == 0 {
		return true
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}

	for _, p := range predicates {
		value, ok := fields[p.Field]
		if !ok {
			return false
		}
		switch p.Op {
		case ledger.OpEqual:
			if fmt.Sprint(value) != fmt.Sprint(p.Value) {
				return false
			}
		case ledger.OpContains:
			items, ok := value.([]interface{})
			if !ok {
				return false
			}
			found := false
			for _, item := range items {
				if fmt.Sprint(item) == fmt.Sprint(p.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}
