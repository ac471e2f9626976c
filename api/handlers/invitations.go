package handlers

import (
	"net/http"

	"github.com/subtrack/family-services/api/services"
)

func CreateInvitation(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.CreateInvitationService(svc, w, r)
	}
}

func GetMyInvitations(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.GetMyInvitationsService(svc, w, r)
	}
}

func RespondToInvitation(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.RespondToInvitationService(svc, w, r)
	}
}
