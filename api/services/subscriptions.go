package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/subtrack/family-services/internal/family"
	"github.com/subtrack/family-services/ledger"
	"github.com/subtrack/family-services/models"
)

// CreateSubscriptionService records a new subscription owned by the caller.
func CreateSubscriptionService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	var sub models.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteResponse(w, http.StatusBadRequest, nil)
		return
	}

	if err := validateSubscription(&sub); err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	sub.UserID = identity.ID
	sub.IsShared = false
	if sub.StartDate.IsZero() {
		sub.StartDate = time.Now().UTC()
	}

	id, err := svc.Store.Create(r.Context(), ledger.CollectionSubscriptions, sub)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}
	sub.ID = id
	sub.Revision = 1

	logger.Info().Str("subscription_id", id.String()).Msg("Subscription created successfully")

	var location = fmt.Sprintf("%s/%s", r.URL.Path, id)
	WriteSuccessResponse(w, http.StatusCreated, sub, location)
}

// GetSubscriptionsService lists the caller's subscriptions.
func GetSubscriptionsService(svc *Service, w http.ResponseWriter, r *http.Request) {

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	docs, err := svc.Store.Query(r.Context(), ledger.CollectionSubscriptions,
		ledger.Eq("userId", identity.ID))
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	subs := make([]models.Subscription, 0, len(docs))
	for _, doc := range docs {
		var sub models.Subscription
		if err := doc.Decode(&sub); err != nil {
			HandleErrResponse(w, r, err)
			return
		}
		sub.ID = doc.ID
		sub.Revision = doc.Revision
		subs = append(subs, sub)
	}

	WriteSuccessResponse(w, http.StatusOK, subs)
}

// GetSubscriptionService retrieves one subscription. Only the owner may view
// it directly; members of the sharing group see it through the shared view.
func GetSubscriptionService(svc *Service, w http.ResponseWriter, r *http.Request) {

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	subscriptionID, ok := pathUUID(w, r, "subscription-id")
	if !ok {
		return
	}

	sub, err := svc.loadOwnedSubscription(w, r, subscriptionID, identity)
	if err != nil {
		return
	}

	WriteSuccessResponse(w, http.StatusOK, sub)
}

// UpdateSubscriptionService replaces the mutable fields of a subscription.
// The price of a shared subscription cannot change here while splits depend
// on it.
func UpdateSubscriptionService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	subscriptionID, ok := pathUUID(w, r, "subscription-id")
	if !ok {
		return
	}

	sub, err := svc.loadOwnedSubscription(w, r, subscriptionID, identity)
	if err != nil {
		return
	}

	var payload models.Subscription
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteResponse(w, http.StatusBadRequest, nil)
		return
	}
	if err := validateSubscription(&payload); err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	if sub.IsShared && payload.Amount != sub.Amount {
		HandleErrResponse(w, r, &family.ConflictError{
			Detail: "cannot change the price of a shared subscription, unshare or re-split first",
		})
		return
	}

	// Identity and sharing state are not client-writable.
	payload.ID = sub.ID
	payload.UserID = sub.UserID
	payload.IsShared = sub.IsShared
	if payload.StartDate.IsZero() {
		payload.StartDate = sub.StartDate
	}

	if err := svc.Store.Update(r.Context(), ledger.CollectionSubscriptions, sub.ID, sub.Revision, payload); err != nil {
		if errors.Is(err, ledger.ErrRevisionConflict) {
			HandleErrResponse(w, r, &family.ConflictError{Detail: "subscription was modified concurrently, retry"})
			return
		}
		HandleErrResponse(w, r, err)
		return
	}
	payload.Revision = sub.Revision + 1

	logger.Info().Str("subscription_id", sub.ID.String()).Msg("Subscription updated successfully")
	WriteSuccessResponse(w, http.StatusOK, payload)
}

// DeleteSubscriptionService deletes an unshared subscription owned by the
// caller.
func DeleteSubscriptionService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	subscriptionID, ok := pathUUID(w, r, "subscription-id")
	if !ok {
		return
	}

	sub, err := svc.loadOwnedSubscription(w, r, subscriptionID, identity)
	if err != nil {
		return
	}

	// The split plan, not the advisory flag, decides whether deletion is
	// allowed.
	if _, err := svc.Splits.SharedForSubscription(r.Context(), subscriptionID); err == nil {
		HandleErrResponse(w, r, &family.ConflictError{
			Detail: "subscription is shared with a family group, unshare it first",
		})
		return
	} else {
		var notFoundErr *family.NotFoundError
		if !errors.As(err, &notFoundErr) {
			HandleErrResponse(w, r, err)
			return
		}
	}

	if err := svc.Store.Delete(r.Context(), ledger.CollectionSubscriptions, sub.ID); err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	logger.Info().Str("subscription_id", sub.ID.String()).Msg("Subscription deleted successfully")
	WriteResponse(w, http.StatusNoContent, nil)
}

// loadOwnedSubscription fetches a subscription and enforces ownership,
// writing the error response itself on failure.
func (svc *Service) loadOwnedSubscription(w http.ResponseWriter, r *http.Request, subscriptionID uuid.UUID, identity family.Identity) (*models.Subscription, error) {
	doc, err := svc.Store.Get(r.Context(), ledger.CollectionSubscriptions, subscriptionID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			HandleErrResponse(w, r, &family.NotFoundError{Resource: "subscription", ID: subscriptionID.String()})
			return nil, err
		}
		HandleErrResponse(w, r, err)
		return nil, err
	}

	var sub models.Subscription
	if err := doc.Decode(&sub); err != nil {
		HandleErrResponse(w, r, err)
		return nil, err
	}
	sub.ID = doc.ID
	sub.Revision = doc.Revision

	if sub.UserID != identity.ID {
		err := &family.PermissionError{UserID: identity.ID, Permission: "owner"}
		HandleErrResponse(w, r, err)
		return nil, err
	}
	return &sub, nil
}

func validateSubscription(sub *models.Subscription) error {
	if sub.Name == "" {
		return &family.ValidationError{Field: "name", Detail: "subscription name is required"}
	}
	if sub.Amount <= 0 {
		return &family.ValidationError{Field: "amount", Detail: "amount must be positive"}
	}
	return nil
}
