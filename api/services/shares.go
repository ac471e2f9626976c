package services

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/subtrack/family-services/internal/family"
)

// ShareSubscriptionService attaches a split plan to a subscription, sharing
// its cost with a family group.
func ShareSubscriptionService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	subscriptionID, ok := pathUUID(w, r, "subscription-id")
	if !ok {
		return
	}

	var payload struct {
		FamilyGroupID uuid.UUID           `json:"familyGroupId"`
		Splits        []family.SplitInput `json:"splits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteResponse(w, http.StatusBadRequest, nil)
		return
	}

	shared, err := svc.Splits.ShareSubscription(r.Context(), identity, subscriptionID, payload.FamilyGroupID, payload.Splits)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	logger.Info().Str("subscription_id", subscriptionID.String()).
		Str("group_id", payload.FamilyGroupID.String()).
		Msg("Subscription shared successfully")
	WriteSuccessResponse(w, http.StatusCreated, shared)
}

// GetSharedSubscriptionService retrieves the split plan for a subscription.
func GetSharedSubscriptionService(svc *Service, w http.ResponseWriter, r *http.Request) {

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	subscriptionID, ok := pathUUID(w, r, "subscription-id")
	if !ok {
		return
	}

	shared, err := svc.Splits.SharedForSubscription(r.Context(), subscriptionID)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	// Visible to group members and the subscription owner only.
	if !svc.canViewShared(w, r, identity, shared.FamilyGroupID, subscriptionID) {
		return
	}

	WriteSuccessResponse(w, http.StatusOK, shared)
}

// UpdateSplitsService replaces the split plan for a shared subscription.
func UpdateSplitsService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	subscriptionID, ok := pathUUID(w, r, "subscription-id")
	if !ok {
		return
	}

	var payload struct {
		Splits []family.SplitInput `json:"splits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteResponse(w, http.StatusBadRequest, nil)
		return
	}

	shared, err := svc.Splits.UpdateSplits(r.Context(), identity, subscriptionID, payload.Splits)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	logger.Info().Str("subscription_id", subscriptionID.String()).Msg("Splits updated successfully")
	WriteSuccessResponse(w, http.StatusOK, shared)
}

// MarkSplitPaidService marks the caller's split as paid for the current
// cycle.
func MarkSplitPaidService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	subscriptionID, ok := pathUUID(w, r, "subscription-id")
	if !ok {
		return
	}
	userID := mux.Vars(r)["user-id"]

	shared, err := svc.Splits.MarkAsPaid(r.Context(), identity, subscriptionID, userID)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	logger.Info().Str("subscription_id", subscriptionID.String()).Str("member_id", userID).
		Msg("Split marked as paid")
	WriteSuccessResponse(w, http.StatusOK, shared)
}

// UnshareSubscriptionService removes the split plan from a subscription.
func UnshareSubscriptionService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	subscriptionID, ok := pathUUID(w, r, "subscription-id")
	if !ok {
		return
	}

	if err := svc.Splits.Unshare(r.Context(), identity, subscriptionID); err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	logger.Info().Str("subscription_id", subscriptionID.String()).Msg("Subscription unshared")
	WriteResponse(w, http.StatusNoContent, nil)
}

// canViewShared enforces that the caller is a member of the sharing group or
// the subscription owner, writing the error response itself on failure.
func (svc *Service) canViewShared(w http.ResponseWriter, r *http.Request, identity family.Identity, groupID, subscriptionID uuid.UUID) bool {
	group, err := svc.Members.GetGroup(r.Context(), groupID)
	if err != nil {
		HandleErrResponse(w, r, err)
		return false
	}
	if _, member := group.MemberByID(identity.ID); member {
		return true
	}

	sub, err := svc.loadOwnedSubscription(w, r, subscriptionID, identity)
	return err == nil && sub != nil
}
