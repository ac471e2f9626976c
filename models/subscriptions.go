package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/subtrack/family-services/internal/money"
)

// Split types recorded on a SharedSubscription.
const (
	SplitTypeEqual      = "equal"
	SplitTypePercentage = "percentage"
	SplitTypeFixed      = "fixed"
)

// Subscription is a recurring payment obligation owned by exactly one user,
// the payer of record. IsShared is advisory; the authoritative sharing state
// is the presence of a SharedSubscription document (see SharedSubscription).
type Subscription struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Amount      money.Amount `json:"amount"`
	Category    string       `json:"category"`
	Description string       `json:"description,omitempty"`
	StartDate   time.Time    `json:"startDate"`
	NextRenewal time.Time    `json:"nextRenewal"`
	UserID      string       `json:"userId"`
	IsShared    bool         `json:"isShared"`

	Revision int64 `json:"-"`
}

// Split is one member's assigned portion of a shared subscription. A paid
// split always carries LastPaid; an unpaid one never does.
type Split struct {
	UserID   string       `json:"userId"`
	UserName string       `json:"userName"`
	Amount   money.Amount `json:"amount"`
	Paid     bool         `json:"paid"`
	LastPaid *time.Time   `json:"lastPaid,omitempty"`
}

// SharedSubscription records the split plan for one subscription across the
// members of one family group. NeedsResplit is set when a roster change
// orphans a split; the record is kept intact until the owner re-splits.
type SharedSubscription struct {
	ID             uuid.UUID    `json:"id"`
	SubscriptionID uuid.UUID    `json:"subscriptionId"`
	FamilyGroupID  uuid.UUID    `json:"familyGroupId"`
	TotalAmount    money.Amount `json:"totalAmount"`
	SplitType      string       `json:"splitType"`
	Splits         []Split      `json:"splits"`
	NeedsResplit   bool         `json:"needsResplit"`
	CreatedAt      time.Time    `json:"createdAt"`

	Revision int64 `json:"-"`
}

// SplitFor returns the split entry for the given user, if present.
func (s *SharedSubscription) SplitFor(userID string) (int, bool) {
	for i, split := range s.Splits {
		if split.UserID == userID {
			return i, true
		}
	}
	return 0, false
}

// SplitTotal returns the sum of all split amounts.
func (s *SharedSubscription) SplitTotal() money.Amount {
	var total money.Amount
	for _, split := range s.Splits {
		total += split.Amount
	}
	return total
}
