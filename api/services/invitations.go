package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"

	"github.com/subtrack/family-services/models"
)

// CreateInvitationService invites a user by email to the caller's family
// group and emails them a notification. Email delivery is best effort; the
// invitation stands even when SES is unavailable.
func CreateInvitationService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	groupID, ok := pathUUID(w, r, "group-id")
	if !ok {
		return
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteResponse(w, http.StatusBadRequest, nil)
		return
	}

	invitation, err := svc.Members.InviteMember(r.Context(), groupID, identity, payload.Email)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	if err := svc.sendInvitationEmail(r.Context(), invitation); err != nil {
		logger.Warn().Err(err).Str("invitation_id", invitation.ID.String()).
			Msg("Failed to send invitation email")
	}

	logger.Info().Str("invitation_id", invitation.ID.String()).Msg("Invitation created successfully")

	var location = fmt.Sprintf("/invitations/%s", invitation.ID)
	WriteSuccessResponse(w, http.StatusCreated, invitation, location)
}

// GetMyInvitationsService lists the pending invitations addressed to the
// caller's email.
func GetMyInvitationsService(svc *Service, w http.ResponseWriter, r *http.Request) {

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	invitations, err := svc.Members.PendingInvitations(r.Context(), identity.Email)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	WriteSuccessResponse(w, http.StatusOK, invitations)
}

// RespondToInvitationService accepts or declines a pending invitation on
// behalf of the invited user.
func RespondToInvitationService(svc *Service, w http.ResponseWriter, r *http.Request) {

	logger := zerolog.Ctx(r.Context())

	identity, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	invitationID, ok := pathUUID(w, r, "invitation-id")
	if !ok {
		return
	}

	var payload struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn().Err(err).Msg("Invalid request payload")
		WriteResponse(w, http.StatusBadRequest, nil)
		return
	}

	group, err := svc.Members.RespondToInvitation(r.Context(), invitationID, identity, payload.Accept)
	if err != nil {
		HandleErrResponse(w, r, err)
		return
	}

	logger.Info().Str("invitation_id", invitationID.String()).Bool("accepted", payload.Accept).
		Msg("Invitation response recorded")

	if !payload.Accept {
		WriteSuccessResponse(w, http.StatusOK, nil)
		return
	}
	WriteSuccessResponse(w, http.StatusOK, group)
}

// sendInvitationEmail notifies the invitee through SES.
func (svc *Service) sendInvitationEmail(ctx context.Context, invitation *models.Invitation) error {
	if svc.AWSEmailClient == nil {
		return nil
	}

	subject := fmt.Sprintf("%s invited you to join %s", invitation.InvitedByName, invitation.FamilyGroupName)
	body := fmt.Sprintf(
		"%s has invited you to join the family group %q to share subscription costs.\n\n"+
			"Sign in and open your invitations to accept or decline.\n",
		invitation.InvitedByName, invitation.FamilyGroupName)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(svc.Config.Invitations.FromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{invitation.InvitedEmail},
		},
		ReplyToAddresses: []string{svc.Config.Invitations.ReplyToEmail},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	}

	_, err := svc.AWSEmailClient.SendEmail(ctx, input)
	return err
}
