package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"

	"github.com/subtrack/family-services/api/middleware"
	"github.com/subtrack/family-services/internal/appconfig"
	"github.com/subtrack/family-services/internal/authn"
	"github.com/subtrack/family-services/internal/family"
	"github.com/subtrack/family-services/ledger/memory"
	"github.com/subtrack/family-services/models"
)

func newTestService() *Service {
	config := &appconfig.Config{
		Invitations: appconfig.InvitationsConfig{
			FromEmail:    "invitations@example.com",
			ReplyToEmail: "support@example.com",
		},
	}
	return NewService(config, memory.NewStore(), nil, nil)
}

func claimsFor(subject, name, email string) authn.Claims {
	return authn.Claims{
		StandardClaims: jwt.StandardClaims{Subject: subject},
		Name:           name,
		Email:          email,
	}
}

func identityFor(subject, name, email string) family.Identity {
	return family.Identity{ID: subject, Name: name, Email: email}
}

// withClaims attaches mocked claims to the request context.
func withClaims(r *http.Request, claims authn.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ClaimsKey, claims)
	return r.WithContext(ctx)
}

func decodeEnvelope(t *testing.T, res *http.Response, data interface{}) models.Response {
	t.Helper()
	body, _ := io.ReadAll(res.Body)

	var envelope models.Response
	err := json.Unmarshal(body, &envelope)
	assert.NoError(t, err, "Response should be valid JSON")

	if data != nil && envelope.Data != nil {
		raw, err := json.Marshal(envelope.Data)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, data))
	}
	return envelope
}

func TestCreateFamilyGroupService(t *testing.T) {

	svc := newTestService()

	mockClaims := claimsFor("user-1", "Alice Smith", "alice@example.com")

	requestBody, _ := json.Marshal(map[string]string{"name": "Smiths"})
	r := httptest.NewRequest(http.MethodPost, "/family-groups", bytes.NewReader(requestBody))
	r = withClaims(r, mockClaims)

	w := httptest.NewRecorder()
	CreateFamilyGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("Location"), "Location header should point at the new group")

	var group models.FamilyGroup
	envelope := decodeEnvelope(t, res, &group)
	assert.Equal(t, 1, envelope.Success)
	assert.Equal(t, "Smiths", group.Name)
	assert.Len(t, group.Members, 1)
	assert.Equal(t, models.RoleAdmin, group.Members[0].Role)
}

func TestCreateFamilyGroupService_EmptyName(t *testing.T) {

	svc := newTestService()

	requestBody, _ := json.Marshal(map[string]string{"name": "  "})
	r := httptest.NewRequest(http.MethodPost, "/family-groups", bytes.NewReader(requestBody))
	r = withClaims(r, claimsFor("user-1", "Alice Smith", "alice@example.com"))

	w := httptest.NewRecorder()
	CreateFamilyGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	envelope := decodeEnvelope(t, res, nil)
	assert.Equal(t, 0, envelope.Success)
	assert.Equal(t, "validation_error", envelope.ErrorCode)
}

func TestCreateFamilyGroupService_MissingClaims(t *testing.T) {

	svc := newTestService()

	requestBody, _ := json.Marshal(map[string]string{"name": "Smiths"})
	r := httptest.NewRequest(http.MethodPost, "/family-groups", bytes.NewReader(requestBody))

	w := httptest.NewRecorder()
	CreateFamilyGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestGetMyFamilyGroupService(t *testing.T) {

	svc := newTestService()
	mockClaims := claimsFor("user-1", "Alice Smith", "alice@example.com")

	// Create a group first
	requestBody, _ := json.Marshal(map[string]string{"name": "Smiths"})
	r := withClaims(httptest.NewRequest(http.MethodPost, "/family-groups", bytes.NewReader(requestBody)), mockClaims)
	w := httptest.NewRecorder()
	CreateFamilyGroupService(svc, w, r)
	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)

	r = withClaims(httptest.NewRequest(http.MethodGet, "/family-groups", nil), mockClaims)
	w = httptest.NewRecorder()
	GetMyFamilyGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)

	var group models.FamilyGroup
	decodeEnvelope(t, res, &group)
	assert.Equal(t, "Smiths", group.Name)
}

func TestGetMyFamilyGroupService_NoGroup(t *testing.T) {

	svc := newTestService()

	r := withClaims(httptest.NewRequest(http.MethodGet, "/family-groups", nil),
		claimsFor("user-loner", "Loner", "loner@example.com"))
	w := httptest.NewRecorder()
	GetMyFamilyGroupService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	envelope := decodeEnvelope(t, res, nil)
	assert.Equal(t, "not_found", envelope.ErrorCode)
}
