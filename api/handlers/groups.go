package handlers

import (
	"net/http"

	"github.com/subtrack/family-services/api/services"
)

func CreateFamilyGroup(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.CreateFamilyGroupService(svc, w, r)
	}
}

func GetMyFamilyGroup(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.GetMyFamilyGroupService(svc, w, r)
	}
}

func GetFamilyGroup(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.GetFamilyGroupService(svc, w, r)
	}
}

func RemoveMember(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.RemoveMemberService(svc, w, r)
	}
}

func ChangeMemberRole(svc *services.Service) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {

		services.ChangeMemberRoleService(svc, w, r)
	}
}
