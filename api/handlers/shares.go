package handlers

import (
	"net/http"

	"github.com/subtrack/family-services/api/services"
)

func ShareSubscription(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.ShareSubscriptionService(svc, w, r)
	}
}

func GetSharedSubscription(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.GetSharedSubscriptionService(svc, w, r)
	}
}

func UpdateSplits(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.UpdateSplitsService(svc, w, r)
	}
}

func MarkSplitPaid(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.MarkSplitPaidService(svc, w, r)
	}
}

func UnshareSubscription(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.UnshareSubscriptionService(svc, w, r)
	}
}
