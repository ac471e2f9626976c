package family

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/subtrack/family-services/internal/events"
	"github.com/subtrack/family-services/internal/money"
	"github.com/subtrack/family-services/ledger"
	"github.com/subtrack/family-services/models"
)

// sumTolerance is the accepted rounding slack between the split sum and the
// subscription total, in minor units. Amounts are integer cents internally,
// so this only forgives a single leftover cent from equal-split rounding.
const sumTolerance money.Amount = 1

// SplitInput is one proposed split entry.
type SplitInput struct {
	UserID string       `json:"userId"`
	Amount money.Amount `json:"amount"`
}

// SplitEngine owns the SharedSubscription lifecycle: attaching a split plan
// to a subscription, re-validating it on edit, and tracking per-member
// payment state. Split-state changes are announced through the notifier;
// publish failures never roll back an operation.
type SplitEngine struct {
	store    ledger.Store
	notifier events.Notifier
}

// NewSplitEngine creates a SplitEngine backed by the given store and
// notifier.
func NewSplitEngine(store ledger.Store, notifier events.Notifier) *SplitEngine {
	return &SplitEngine{store: store, notifier: notifier}
}

// EqualSplits divides total equally across the given users, distributing
// leftover cents to the first entries. This is a caller-side convenience for
// building a proposal; the engine itself never rescales amounts.
func EqualSplits(total money.Amount, userIDs []string) []SplitInput {
	parts := money.SplitEven(total, len(userIDs))
	splits := make([]SplitInput, len(userIDs))
	for i, id := range userIDs {
		splits[i] = SplitInput{UserID: id, Amount: parts[i]}
	}
	return splits
}

// ShareSubscription attaches a split plan to a subscription. The caller must
// be the subscription owner or hold the edit permission in the group, every
// split must belong to a current member, and the amounts must sum to the
// subscription's current price.
func (e *SplitEngine) ShareSubscription(ctx context.Context, actor Identity, subscriptionID, groupID uuid.UUID, proposed []SplitInput) (*models.SharedSubscription, error) {
	sub, err := loadSubscription(ctx, e.store, subscriptionID)
	if err != nil {
		return nil, err
	}
	group, err := loadGroup(ctx, e.store, groupID)
	if err != nil {
		return nil, err
	}

	if err := e.authorizeSplitEdit(actor, sub, group); err != nil {
		return nil, err
	}
	if err := validateSplits(proposed, sub.Amount, group); err != nil {
		return nil, err
	}

	// The isShared flag is advisory; the SharedSubscription collection is
	// authoritative, so an existing record means the caller wants UpdateSplits.
	if existing, err := e.SharedForSubscription(ctx, subscriptionID); err == nil && existing != nil {
		return nil, &ConflictError{Detail: "subscription is already shared, update its splits instead"}
	} else if err != nil {
		if _, ok := err.(*NotFoundError); !ok {
			return nil, err
		}
	}

	shared := models.SharedSubscription{
		SubscriptionID: sub.ID,
		FamilyGroupID:  group.ID,
		TotalAmount:    sub.Amount,
		SplitType:      models.SplitTypeFixed,
		Splits:         buildSplits(proposed, group),
		CreatedAt:      time.Now().UTC(),
	}

	id, err := e.store.Create(ctx, ledger.CollectionSharedSubscriptions, shared)
	if err != nil {
		return nil, fmt.Errorf("error creating shared subscription: %w", err)
	}
	shared.ID = id
	shared.Revision = 1

	// Second, non-atomic write. A failure here leaves isShared stale, which
	// readers tolerate by deriving shared state from the record just created.
	sub.IsShared = true
	if err := e.store.Update(ctx, ledger.CollectionSubscriptions, sub.ID, sub.Revision, sub); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("subscription_id", sub.ID.String()).
			Msg("error flagging subscription as shared")
	}

	e.addGroupRef(ctx, group, sub.ID)
	e.publish(ctx, events.SplitEvent{SubscriptionID: sub.ID, Action: events.ActionCreated})

	zerolog.Ctx(ctx).Info().
		Str("subscription_id", sub.ID.String()).
		Str("group_id", group.ID.String()).
		Int("split_count", len(shared.Splits)).
		Msg("subscription shared")

	return &shared, nil
}

// UpdateSplits replaces the split plan. Members absent from newSplits are
// dropped; a member whose amount changed has their paid state reset. The sum
// is validated against the stored total and the write is guarded by the
// document revision.
func (e *SplitEngine) UpdateSplits(ctx context.Context, actor Identity, subscriptionID uuid.UUID, newSplits []SplitInput) (*models.SharedSubscription, error) {
	shared, err := e.SharedForSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	sub, err := loadSubscription(ctx, e.store, subscriptionID)
	if err != nil {
		return nil, err
	}
	group, err := loadGroup(ctx, e.store, shared.FamilyGroupID)
	if err != nil {
		return nil, err
	}

	if err := e.authorizeSplitEdit(actor, sub, group); err != nil {
		return nil, err
	}
	if err := validateSplits(newSplits, shared.TotalAmount, group); err != nil {
		return nil, err
	}

	previous := make(map[string]models.Split, len(shared.Splits))
	for _, split := range shared.Splits {
		previous[split.UserID] = split
	}

	shared.Splits = buildSplits(newSplits, group)
	for i, split := range shared.Splits {
		prior, ok := previous[split.UserID]
		if ok && prior.Amount == split.Amount {
			// Unchanged amount keeps its payment state.
			shared.Splits[i].Paid = prior.Paid
			shared.Splits[i].LastPaid = prior.LastPaid
		}
	}
	shared.NeedsResplit = false

	if err := e.store.Update(ctx, ledger.CollectionSharedSubscriptions, shared.ID, shared.Revision, shared); err != nil {
		return nil, storeConflict(err, "shared subscription")
	}
	shared.Revision++

	e.publish(ctx, events.SplitEvent{SubscriptionID: subscriptionID, Action: events.ActionUpdated})

	zerolog.Ctx(ctx).Info().
		Str("subscription_id", subscriptionID.String()).
		Int("split_count", len(shared.Splits)).
		Msg("splits updated")

	return shared, nil
}

// MarkAsPaid marks the caller's own split as paid and stamps lastPaid.
// Marking an already-paid split is a no-op that keeps the original stamp; a
// fresh payment cycle goes through UpdateSplits, which resets paid state.
func (e *SplitEngine) MarkAsPaid(ctx context.Context, actor Identity, subscriptionID uuid.UUID, userID string) (*models.SharedSubscription, error) {
	if actor.ID != userID {
		return nil, &PermissionError{UserID: actor.ID, Permission: "mark own split paid"}
	}

	shared, err := e.SharedForSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	idx, ok := shared.SplitFor(userID)
	if !ok {
		return nil, &NotFoundError{Resource: "split for user", ID: userID}
	}
	if shared.Splits[idx].Paid {
		return shared, nil
	}

	now := time.Now().UTC()
	shared.Splits[idx].Paid = true
	shared.Splits[idx].LastPaid = &now

	if err := e.store.Update(ctx, ledger.CollectionSharedSubscriptions, shared.ID, shared.Revision, shared); err != nil {
		return nil, storeConflict(err, "shared subscription")
	}
	shared.Revision++

	e.publish(ctx, events.SplitEvent{SubscriptionID: subscriptionID, Action: events.ActionPaid, UserID: userID})

	zerolog.Ctx(ctx).Info().
		Str("subscription_id", subscriptionID.String()).
		Str("member_id", userID).
		Msg("split marked as paid")

	return shared, nil
}

// Unshare deletes the split plan. Only the subscription owner may unshare.
func (e *SplitEngine) Unshare(ctx context.Context, actor Identity, subscriptionID uuid.UUID) error {
	shared, err := e.SharedForSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	sub, err := loadSubscription(ctx, e.store, subscriptionID)
	if err != nil {
		return err
	}
	if actor.ID != sub.UserID {
		return &PermissionError{UserID: actor.ID, Permission: "owner"}
	}

	if err := e.store.Delete(ctx, ledger.CollectionSharedSubscriptions, shared.ID); err != nil {
		return fmt.Errorf("error deleting shared subscription: %w", err)
	}

	sub.IsShared = false
	if err := e.store.Update(ctx, ledger.CollectionSubscriptions, sub.ID, sub.Revision, sub); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("subscription_id", sub.ID.String()).
			Msg("error clearing shared flag on subscription")
	}

	e.removeGroupRef(ctx, shared.FamilyGroupID, subscriptionID)
	e.publish(ctx, events.SplitEvent{SubscriptionID: subscriptionID, Action: events.ActionUpdated})
	return nil
}

// SharedForSubscription returns the authoritative shared-subscription record,
// or a NotFoundError when the subscription is unshared. Callers use this
// rather than the advisory isShared flag.
func (e *SplitEngine) SharedForSubscription(ctx context.Context, subscriptionID uuid.UUID) (*models.SharedSubscription, error) {
	docs, err := e.store.Query(ctx, ledger.CollectionSharedSubscriptions,
		ledger.Eq("subscriptionId", subscriptionID.String()))
	if err != nil {
		return nil, fmt.Errorf("error querying shared subscriptions: %w", err)
	}
	if len(docs) == 0 {
		return nil, &NotFoundError{Resource: "shared subscription", ID: subscriptionID.String()}
	}

	var shared models.SharedSubscription
	if err := docs[0].Decode(&shared); err != nil {
		return nil, fmt.Errorf("error decoding shared subscription: %w", err)
	}
	shared.ID = docs[0].ID
	shared.Revision = docs[0].Revision
	return &shared, nil
}

// SharedForGroup lists all shared subscriptions owned by a group.
func (e *SplitEngine) SharedForGroup(ctx context.Context, groupID uuid.UUID) ([]models.SharedSubscription, error) {
	docs, err := e.store.Query(ctx, ledger.CollectionSharedSubscriptions,
		ledger.Eq("familyGroupId", groupID.String()))
	if err != nil {
		return nil, fmt.Errorf("error querying shared subscriptions: %w", err)
	}

	shared := make([]models.SharedSubscription, 0, len(docs))
	for _, doc := range docs {
		var s models.SharedSubscription
		if err := doc.Decode(&s); err != nil {
			return nil, fmt.Errorf("error decoding shared subscription: %w", err)
		}
		s.ID = doc.ID
		s.Revision = doc.Revision
		shared = append(shared, s)
	}
	return shared, nil
}

func (e *SplitEngine) authorizeSplitEdit(actor Identity, sub *models.Subscription, group *models.FamilyGroup) error {
	if actor.ID == sub.UserID {
		return nil
	}
	member, ok := group.MemberByID(actor.ID)
	if ok && member.HasPermission(models.PermissionEdit) {
		return nil
	}
	return &PermissionError{UserID: actor.ID, Permission: models.PermissionEdit}
}

// validateSplits enforces the structural preconditions shared by
// ShareSubscription and UpdateSplits: no empty or duplicate entries, no
// negative amounts, every user a current member, and the sum equal to the
// total within sumTolerance. Violations carry expected/actual detail so the
// caller can correct input; nothing is ever auto-rescaled.
func validateSplits(splits []SplitInput, total money.Amount, group *models.FamilyGroup) error {
	if len(splits) == 0 {
		return &ValidationError{Field: "splits", Detail: "at least one split is required"}
	}

	seen := make(map[string]bool, len(splits))
	var sum money.Amount
	for _, split := range splits {
		if split.UserID == "" {
			return &ValidationError{Field: "splits", Detail: "split entry is missing a user id"}
		}
		if seen[split.UserID] {
			return &ValidationError{Field: "splits", Detail: fmt.Sprintf("duplicate split for user %s", split.UserID)}
		}
		seen[split.UserID] = true
		if split.Amount < 0 {
			return &ValidationError{Field: "splits", Detail: fmt.Sprintf("negative amount for user %s", split.UserID)}
		}
		if _, ok := group.MemberByID(split.UserID); !ok {
			return &NotFoundError{Resource: "member", ID: split.UserID}
		}
		sum += split.Amount
	}

	if (sum - total).Abs() > sumTolerance {
		return &SplitMismatchError{Expected: total, Actual: sum}
	}
	return nil
}

// buildSplits materializes the proposal into unpaid Split records with the
// member's display name snapshotted from the roster.
func buildSplits(proposed []SplitInput, group *models.FamilyGroup) []models.Split {
	splits := make([]models.Split, len(proposed))
	for i, p := range proposed {
		member, _ := group.MemberByID(p.UserID)
		splits[i] = models.Split{
			UserID:   p.UserID,
			UserName: member.Name,
			Amount:   p.Amount,
		}
	}
	return splits
}

// addGroupRef records the sharing relationship on the group document so the
// app's group screen can list it without a join. Best effort, same tolerance
// as the isShared flag.
func (e *SplitEngine) addGroupRef(ctx context.Context, group *models.FamilyGroup, subscriptionID uuid.UUID) {
	for _, ref := range group.SharedSubscriptions {
		if ref.SubscriptionID == subscriptionID {
			return
		}
	}
	group.SharedSubscriptions = append(group.SharedSubscriptions, models.SharedSubscriptionRef{SubscriptionID: subscriptionID})
	if err := e.store.Update(ctx, ledger.CollectionFamilyGroups, group.ID, group.Revision, group); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("group_id", group.ID.String()).
			Msg("error recording shared subscription on group")
	} else {
		group.Revision++
	}
}

func (e *SplitEngine) removeGroupRef(ctx context.Context, groupID, subscriptionID uuid.UUID) {
	group, err := loadGroup(ctx, e.store, groupID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("group_id", groupID.String()).Msg("error loading group to remove shared ref")
		return
	}
	refs := group.SharedSubscriptions[:0]
	for _, ref := range group.SharedSubscriptions {
		if ref.SubscriptionID != subscriptionID {
			refs = append(refs, ref)
		}
	}
	group.SharedSubscriptions = refs
	if err := e.store.Update(ctx, ledger.CollectionFamilyGroups, group.ID, group.Revision, group); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("group_id", group.ID.String()).Msg("error removing shared subscription from group")
	}
}

func (e *SplitEngine) publish(ctx context.Context, event events.SplitEvent) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Publish(event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("subscription_id", event.SubscriptionID.String()).
			Str("action", event.Action).
			Msg("error publishing split event")
	}
}
