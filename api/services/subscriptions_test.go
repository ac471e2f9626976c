package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/subtrack/family-services/internal/money"
	"github.com/subtrack/family-services/models"
)

func createSubscription(t *testing.T, svc *Service, subject string, sub models.Subscription) models.Subscription {
	t.Helper()
	requestBody, _ := json.Marshal(sub)
	r := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(requestBody))
	r = withClaims(r, claimsFor(subject, "Alice Smith", "alice@example.com"))

	w := httptest.NewRecorder()
	CreateSubscriptionService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	var created models.Subscription
	decodeEnvelope(t, res, &created)
	return created
}

func TestCreateSubscriptionService(t *testing.T) {

	svc := newTestService()

	created := createSubscription(t, svc, "user-1", models.Subscription{
		Name:     "Netflix",
		Amount:   1598,
		Category: "Entertainment",
	})

	assert.Equal(t, "Netflix", created.Name)
	assert.Equal(t, money.Amount(1598), created.Amount)
	assert.Equal(t, "user-1", created.UserID, "ownership comes from the claims, not the payload")
	assert.False(t, created.IsShared)
	assert.False(t, created.StartDate.IsZero())
}

func TestCreateSubscriptionService_Invalid(t *testing.T) {

	svc := newTestService()

	requestBody, _ := json.Marshal(models.Subscription{Name: "Netflix", Amount: -100})
	r := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(requestBody))
	r = withClaims(r, claimsFor("user-1", "Alice Smith", "alice@example.com"))

	w := httptest.NewRecorder()
	CreateSubscriptionService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	envelope := decodeEnvelope(t, res, nil)
	assert.Equal(t, "validation_error", envelope.ErrorCode)
}

func TestGetSubscriptionsService(t *testing.T) {

	svc := newTestService()
	createSubscription(t, svc, "user-1", models.Subscription{Name: "Netflix", Amount: 1598})
	createSubscription(t, svc, "user-1", models.Subscription{Name: "Spotify", Amount: 999})
	createSubscription(t, svc, "user-2", models.Subscription{Name: "Disney+", Amount: 899})

	r := withClaims(httptest.NewRequest(http.MethodGet, "/subscriptions", nil),
		claimsFor("user-1", "Alice Smith", "alice@example.com"))
	w := httptest.NewRecorder()
	GetSubscriptionsService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var subs []models.Subscription
	decodeEnvelope(t, res, &subs)
	assert.Len(t, subs, 2, "only the caller's subscriptions are listed")
}

func TestGetSubscriptionService_NotOwner(t *testing.T) {

	svc := newTestService()
	created := createSubscription(t, svc, "user-1", models.Subscription{Name: "Netflix", Amount: 1598})

	r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/subscriptions/%s", created.ID), nil)
	r = withClaims(r, claimsFor("user-2", "Bob Smith", "bob@example.com"))
	r = mux.SetURLVars(r, map[string]string{"subscription-id": created.ID.String()})

	w := httptest.NewRecorder()
	GetSubscriptionService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestUpdateSubscriptionService(t *testing.T) {

	svc := newTestService()
	created := createSubscription(t, svc, "user-1", models.Subscription{Name: "Netflix", Amount: 1598})

	requestBody, _ := json.Marshal(models.Subscription{Name: "Netflix Premium", Amount: 1999})
	r := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/subscriptions/%s", created.ID), bytes.NewReader(requestBody))
	r = withClaims(r, claimsFor("user-1", "Alice Smith", "alice@example.com"))
	r = mux.SetURLVars(r, map[string]string{"subscription-id": created.ID.String()})

	w := httptest.NewRecorder()
	UpdateSubscriptionService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var updated models.Subscription
	decodeEnvelope(t, res, &updated)
	assert.Equal(t, "Netflix Premium", updated.Name)
	assert.Equal(t, money.Amount(1999), updated.Amount)
	assert.Equal(t, "user-1", updated.UserID)
}

func TestDeleteSubscriptionService(t *testing.T) {

	svc := newTestService()
	created := createSubscription(t, svc, "user-1", models.Subscription{Name: "Netflix", Amount: 1598})

	r := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/subscriptions/%s", created.ID), nil)
	r = withClaims(r, claimsFor("user-1", "Alice Smith", "alice@example.com"))
	r = mux.SetURLVars(r, map[string]string{"subscription-id": created.ID.String()})

	w := httptest.NewRecorder()
	DeleteSubscriptionService(svc, w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	// The subscription is gone
	r = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/subscriptions/%s", created.ID), nil)
	r = withClaims(r, claimsFor("user-1", "Alice Smith", "alice@example.com"))
	r = mux.SetURLVars(r, map[string]string{"subscription-id": created.ID.String()})

	w = httptest.NewRecorder()
	GetSubscriptionService(svc, w, r)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}
