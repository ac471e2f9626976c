package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/subtrack/family-services/internal/events"
	"github.com/subtrack/family-services/internal/family"
	"github.com/subtrack/family-services/models"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the Pulsar consumer to send payment reminders for split events",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config, connect the store and set up logging
		commonSetUp()
		defer ledgerStore.Close()

		// Initialize event consumer
		consumer, err := events.NewSplitEventConsumer(appCfg.Pulsar.URL, appCfg.Pulsar.TopicConsumer, appCfg.Pulsar.Subscription)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize event consumer")
		}
		defer consumer.Close()

		emailClient, err := initializeEmailClient(appCfg.AWS.Region)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize SES client")
		}

		members := family.NewMembershipManager(ledgerStore)
		splits := family.NewSplitEngine(ledgerStore, nil)

		// Consume messages
		for {
			event, msg, err := consumer.Receive(context.Background())
			if err != nil {
				log.Error().Err(err).Msg("Error receiving message")
				continue
			}

			if err := processSplitEvent(context.Background(), members, splits, emailClient, event); err != nil {
				log.Error().Err(err).
					Str("subscription_id", event.SubscriptionID.String()).
					Msg("Failed to process split event")
				consumer.Nack(msg)
				continue
			}

			consumer.Ack(msg)
		}
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

// processSplitEvent emails a payment reminder to every member whose split is
// still unpaid after a split plan is created or updated. Payment events need
// no reminder.
func processSplitEvent(ctx context.Context, members *family.MembershipManager, splits *family.SplitEngine, emailClient *sesv2.Client, event events.SplitEvent) error {
	if event.Action == events.ActionPaid {
		return nil
	}

	shared, err := splits.SharedForSubscription(ctx, event.SubscriptionID)
	if err != nil {
		// The plan may have been unshared between publish and consume
		var notFoundErr *family.NotFoundError
		if errors.As(err, &notFoundErr) {
			return nil
		}
		return err
	}

	group, err := members.GetGroup(ctx, shared.FamilyGroupID)
	if err != nil {
		return err
	}

	for _, split := range shared.Splits {
		if split.Paid {
			continue
		}
		member, ok := group.MemberByID(split.UserID)
		if !ok || member.Email == "" {
			continue
		}
		if err := sendPaymentReminder(ctx, emailClient, member, split); err != nil {
			log.Warn().Err(err).
				Str("member_id", member.ID).
				Str("subscription_id", event.SubscriptionID.String()).
				Msg("Failed to send payment reminder")
		}
	}
	return nil
}

func sendPaymentReminder(ctx context.Context, emailClient *sesv2.Client, member models.Member, split models.Split) error {
	subject := "Your share of a family subscription is due"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour share of %s is due for this cycle. "+
			"Sign in to mark it as paid once you have settled up.\n",
		member.Name, split.Amount)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(appCfg.Invitations.FromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{member.Email},
		},
		ReplyToAddresses: []string{appCfg.Invitations.ReplyToEmail},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	}

	_, err := emailClient.SendEmail(ctx, input)
	return err
}
