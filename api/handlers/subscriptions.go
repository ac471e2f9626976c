package handlers

import (
	"net/http"

	"github.com/subtrack/family-services/api/services"
)

func CreateSubscription(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.CreateSubscriptionService(svc, w, r)
	}
}

func GetSubscriptions(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.GetSubscriptionsService(svc, w, r)
	}
}

func GetSubscription(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.GetSubscriptionService(svc, w, r)
	}
}

func UpdateSubscription(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.UpdateSubscriptionService(svc, w, r)
	}
}

func DeleteSubscription(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.DeleteSubscriptionService(svc, w, r)
	}
}
