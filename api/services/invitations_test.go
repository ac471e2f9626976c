package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/subtrack/family-services/models"
)

// createGroup drives CreateFamilyGroupService and returns the created group.
func createGroup(t *testing.T, svc *Service, subject, name, email, groupName string) models.FamilyGroup {
	t.Helper()
	requestBody, _ := json.Marshal(map[string]string{"name": groupName})
	r := withClaims(httptest.NewRequest(http.MethodPost, "/family-groups", bytes.NewReader(requestBody)),
		claimsFor(subject, name, email))
	w := httptest.NewRecorder()
	CreateFamilyGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	var group models.FamilyGroup
	decodeEnvelope(t, res, &group)
	return group
}

func TestCreateInvitationService(t *testing.T) {

	svc := newTestService()
	mockAWSEmailClient := new(MockAWSEmailClient)
	svc.AWSEmailClient = mockAWSEmailClient

	mockAWSEmailClient.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).
		Return(&sesv2.SendEmailOutput{}, nil)

	group := createGroup(t, svc, "user-1", "Alice Smith", "alice@example.com", "Smiths")

	requestBody, _ := json.Marshal(map[string]string{"email": "Bob@Example.com"})
	r := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/family-groups/%s/invitations", group.ID), bytes.NewReader(requestBody))
	r = withClaims(r, claimsFor("user-1", "Alice Smith", "alice@example.com"))
	r = mux.SetURLVars(r, map[string]string{"group-id": group.ID.String()})

	w := httptest.NewRecorder()
	CreateInvitationService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusCreated, res.StatusCode)

	var invitation models.Invitation
	decodeEnvelope(t, res, &invitation)
	assert.Equal(t, "bob@example.com", invitation.InvitedEmail)
	assert.Equal(t, models.InvitationPending, invitation.Status)

	mockAWSEmailClient.AssertExpectations(t)
	mockAWSEmailClient.AssertCalled(t, "SendEmail", mock.Anything, mock.MatchedBy(func(input *sesv2.SendEmailInput) bool {
		return input.FromEmailAddress != nil && *input.FromEmailAddress == "invitations@example.com" &&
			len(input.Destination.ToAddresses) == 1 && input.Destination.ToAddresses[0] == "bob@example.com"
	}), mock.Anything)
}

func TestCreateInvitationService_EmailFailureDoesNotFailRequest(t *testing.T) {

	svc := newTestService()
	mockAWSEmailClient := new(MockAWSEmailClient)
	svc.AWSEmailClient = mockAWSEmailClient

	mockAWSEmailClient.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).
		Return(&sesv2.SendEmailOutput{}, fmt.Errorf("ses unavailable"))

	group := createGroup(t, svc, "user-1", "Alice Smith", "alice@example.com", "Smiths")

	requestBody, _ := json.Marshal(map[string]string{"email": "bob@example.com"})
	r := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/family-groups/%s/invitations", group.ID), bytes.NewReader(requestBody))
	r = withClaims(r, claimsFor("user-1", "Alice Smith", "alice@example.com"))
	r = mux.SetURLVars(r, map[string]string{"group-id": group.ID.String()})

	w := httptest.NewRecorder()
	CreateInvitationService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusCreated, res.StatusCode, "invitation stands even when email delivery fails")
}

func TestCreateInvitationService_GroupNotFound(t *testing.T) {

	svc := newTestService()

	requestBody, _ := json.Marshal(map[string]string{"email": "bob@example.com"})
	missing := uuid.New()
	r := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/family-groups/%s/invitations", missing), bytes.NewReader(requestBody))
	r = withClaims(r, claimsFor("user-1", "Alice Smith", "alice@example.com"))
	r = mux.SetURLVars(r, map[string]string{"group-id": missing.String()})

	w := httptest.NewRecorder()
	CreateInvitationService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRespondToInvitationService(t *testing.T) {

	svc := newTestService()
	group := createGroup(t, svc, "user-1", "Alice Smith", "alice@example.com", "Smiths")

	// Invite bob directly through the membership manager
	invitation, err := svc.Members.InviteMember(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
		group.ID, identityFor("user-1", "Alice Smith", "alice@example.com"), "bob@example.com")
	assert.NoError(t, err)

	// Bob lists his invitations
	r := withClaims(httptest.NewRequest(http.MethodGet, "/invitations", nil),
		claimsFor("user-2", "Bob Smith", "bob@example.com"))
	w := httptest.NewRecorder()
	GetMyInvitationsService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var invitations []models.Invitation
	decodeEnvelope(t, res, &invitations)
	assert.Len(t, invitations, 1)

	// Bob accepts
	requestBody, _ := json.Marshal(map[string]bool{"accept": true})
	r = httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/invitations/%s/respond", invitation.ID), bytes.NewReader(requestBody))
	r = withClaims(r, claimsFor("user-2", "Bob Smith", "bob@example.com"))
	r = mux.SetURLVars(r, map[string]string{"invitation-id": invitation.ID.String()})

	w = httptest.NewRecorder()
	RespondToInvitationService(svc, w, r)

	res = w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var updated models.FamilyGroup
	decodeEnvelope(t, res, &updated)
	assert.Len(t, updated.Members, 2)
}

func TestRespondToInvitationService_WrongEmail(t *testing.T) {

	svc := newTestService()
	group := createGroup(t, svc, "user-1", "Alice Smith", "alice@example.com", "Smiths")

	invitation, err := svc.Members.InviteMember(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
		group.ID, identityFor("user-1", "Alice Smith", "alice@example.com"), "bob@example.com")
	assert.NoError(t, err)

	requestBody, _ := json.Marshal(map[string]bool{"accept": true})
	r := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/invitations/%s/respond", invitation.ID), bytes.NewReader(requestBody))
	r = withClaims(r, claimsFor("user-3", "Carol Jones", "carol@example.com"))
	r = mux.SetURLVars(r, map[string]string{"invitation-id": invitation.ID.String()})

	w := httptest.NewRecorder()
	RespondToInvitationService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	envelope := decodeEnvelope(t, res, nil)
	assert.Equal(t, "authorization_error", envelope.ErrorCode)
}
