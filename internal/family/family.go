// Package family implements the membership and cost-splitting rules for
// family groups: group lifecycle and invitations, and the split plans that
// divide a shared subscription's cost across group members. The services here
// are stateless; every operation fetches the documents it needs from the
// ledger store, validates the mutation, and writes whole documents back under
// optimistic concurrency.
package family

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/subtrack/family-services/ledger"
	"github.com/subtrack/family-services/models"
)

// Identity is the authenticated caller as resolved by the Identity Gateway.
type Identity struct {
	ID    string
	Name  string
	Email string
}

func loadGroup(ctx context.Context, store ledger.Store, groupID uuid.UUID) (*models.FamilyGroup, error) {
	doc, err := store.Get(ctx, ledger.CollectionFamilyGroups, groupID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, &NotFoundError{Resource: "family group", ID: groupID.String()}
		}
		return nil, fmt.Errorf("error loading family group: %w", err)
	}

	var group models.FamilyGroup
	if err := doc.Decode(&group); err != nil {
		return nil, fmt.Errorf("error decoding family group %s: %w", groupID, err)
	}
	group.ID = doc.ID
	group.Revision = doc.Revision
	return &group, nil
}

func loadSubscription(ctx context.Context, store ledger.Store, subscriptionID uuid.UUID) (*models.Subscription, error) {
	doc, err := store.Get(ctx, ledger.CollectionSubscriptions, subscriptionID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, &NotFoundError{Resource: "subscription", ID: subscriptionID.String()}
		}
		return nil, fmt.Errorf("error loading subscription: %w", err)
	}

	var sub models.Subscription
	if err := doc.Decode(&sub); err != nil {
		return nil, fmt.Errorf("error decoding subscription %s: %w", subscriptionID, err)
	}
	sub.ID = doc.ID
	sub.Revision = doc.Revision
	return &sub, nil
}

// storeConflict converts a ledger revision mismatch into the typed conflict
// the caller retries on; other store errors pass through wrapped.
func storeConflict(err error, what string) error {
	if errors.Is(err, ledger.ErrRevisionConflict) {
		return &ConflictError{Detail: fmt.Sprintf("%s was modified concurrently, retry", what)}
	}
	return fmt.Errorf("error updating %s: %w", what, err)
}
