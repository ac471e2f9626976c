package services

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/subtrack/family-services/internal/appconfig"
	"github.com/subtrack/family-services/internal/events"
	"github.com/subtrack/family-services/internal/family"
	"github.com/subtrack/family-services/ledger"
)

// EmailClient is the part of the SES v2 API the services use, extracted so
// tests can mock outbound email.
type EmailClient interface {
	SendEmail(ctx context.Context, input *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Service contains all shared dependencies for handlers.
type Service struct {
	Config         *appconfig.Config
	Store          ledger.Store
	Members        *family.MembershipManager
	Splits         *family.SplitEngine
	Publisher      events.Notifier
	AWSEmailClient EmailClient
}

// NewService wires the membership manager and split engine on top of the
// given store.
func NewService(config *appconfig.Config, store ledger.Store, publisher events.Notifier, emailClient EmailClient) *Service {
	return &Service{
		Config:         config,
		Store:          store,
		Members:        family.NewMembershipManager(store),
		Splits:         family.NewSplitEngine(store, publisher),
		Publisher:      publisher,
		AWSEmailClient: emailClient,
	}
}
