package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// CreateFamilyGroupService creates a new family group with the caller as its
// first admin.
func CreateFamilyGroupService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	// Decode the request payload
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteResponse(w, http.StatusBadRequest, nil)
		return
	}

	group, err := svc.Members.CreateGroup(r.Context(), identity, payload.Name)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	logger.Info().Str("group_id", group.ID.String()).Msg("Family group created successfully")

	var location = fmt.Sprintf("%s/%s", r.URL.Path, group.ID)
	WriteSuccessResponse(w, http.StatusCreated, group, location)
}

// GetMyFamilyGroupService retrieves the family group the caller belongs to.
func GetMyFamilyGroupService(svc *Service, w http.ResponseWriter, r *http.Request) {

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	group, err := svc.Members.GroupForUser(r.Context(), identity.ID)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	WriteSuccessResponse(w, http.StatusOK, group)
}

// GetFamilyGroupService retrieves an individual family group. Only members
// may view it.
func GetFamilyGroupService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	groupID, ok := pathUUID(w, r, "group-id")
	if !ok {
		return
	}

	group, err := svc.Members.GetGroup(r.Context(), groupID)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	if _, member := group.MemberByID(identity.ID); !member {
		logger.Warn().Str("group_id", groupID.String()).Str("user", identity.ID).
			Msg("Access denied: user is not a member of the group")
		WriteResponse(w, http.StatusForbidden, nil)
		return
	}

	WriteSuccessResponse(w, http.StatusOK, group)
}

// RemoveMemberService removes a member from a family group.
func RemoveMemberService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	groupID, ok := pathUUID(w, r, "group-id")
	if !ok {
		return
	}
	memberID := mux.Vars(r)["member-id"]

	group, err := svc.Members.RemoveMember(r.Context(), groupID, identity.ID, memberID)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	logger.Info().Str("group_id", groupID.String()).Str("member_id", memberID).
		Msg("Member removed successfully")
	WriteSuccessResponse(w, http.StatusOK, group)
}

// ChangeMemberRoleService promotes or demotes a group member.
func ChangeMemberRoleService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	groupID, ok := pathUUID(w, r, "group-id")
	if !ok {
		return
	}
	memberID := mux.Vars(r)["member-id"]

	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteResponse(w, http.StatusBadRequest, nil)
		return
	}

	group, err := svc.Members.ChangeRole(r.Context(), groupID, identity.ID, memberID, payload.Role)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	logger.Info().Str("group_id", groupID.String()).Str("member_id", memberID).
		Str("role", payload.Role).Msg("Member role changed successfully")
	WriteSuccessResponse(w, http.StatusOK, group)
}
