// Package ledger defines the document store the family services persist to.
// The contract is deliberately narrow: typed collections of JSON documents,
// equality and array-membership predicates, per-document optimistic
// concurrency, and a change subscription with at-least-once, eventually
// consistent delivery.
package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// Collections used by the family services.
const (
	CollectionFamilyGroups        = "familyGroups"
	CollectionInvitations         = "familyInvitations"
	CollectionSubscriptions       = "subscriptions"
	CollectionSharedSubscriptions = "sharedSubscriptions"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrRevisionConflict is returned by Update when a concurrent writer won;
	// the caller must re-read and retry.
	ErrRevisionConflict = errors.New("document revision conflict")
)

// Op is a predicate operator.
type Op string

const (
	// OpEqual matches documents whose field equals the value.
	OpEqual Op = "=="

	// OpContains matches documents whose array field contains the value.
	OpContains Op = "contains"
)

// Predicate filters a Query or Subscribe call.
type Predicate struct {
	Field string
	Op    Op
	Value interface{}
}

// Eq builds an equality predicate.
func Eq(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpEqual, Value: value}
}

// Contains builds an array-membership predicate.
func Contains(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpContains, Value: value}
}

// Document is a stored document together with its revision. Revision starts
// at 1 and increments on every update.
type Document struct {
	ID       uuid.UUID
	Revision int64
	Data     json.RawMessage
}

// Decode unmarshals the document body into v.
func (d *Document) Decode(v interface{}) error {
	return json.Unmarshal(d.Data, v)
}

// OnChange receives the current snapshot of documents matching a
// subscription's predicates. Delivery ordering and latency are unspecified;
// an intermediate snapshot may violate cross-document invariants and must be
// tolerated by the subscriber.
type OnChange func(docs []Document)

// Store is the Ledger Store interface. Mutations are atomic per document;
// there are no cross-document transactions.
type Store interface {
	Get(ctx context.Context, collection string, id uuid.UUID) (*Document, error)
	Query(ctx context.Context, collection string, predicates ...Predicate) ([]Document, error)
	Create(ctx context.Context, collection string, data interface{}) (uuid.UUID, error)

	// Update replaces the whole document body. The write succeeds only if the
	// stored revision equals revision, otherwise ErrRevisionConflict.
	Update(ctx context.Context, collection string, id uuid.UUID, revision int64, data interface{}) error

	Delete(ctx context.Context, collection string, id uuid.UUID) error

	// Subscribe registers onChange for documents matching the predicates and
	// returns an unsubscribe function. The current snapshot is delivered
	// first.
	Subscribe(ctx context.Context, collection string, predicates []Predicate, onChange OnChange) (func(), error)

	Close() error
}
