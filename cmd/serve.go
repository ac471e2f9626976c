package cmd

import (
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/subtrack/family-services/api/handlers"
	"github.com/subtrack/family-services/api/middleware"
	"github.com/subtrack/family-services/api/services"
	awsclient "github.com/subtrack/family-services/internal/aws"
	"github.com/subtrack/family-services/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server for handling API requests",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config, initialize the ledger store and set up logging
		commonSetUp()
		defer ledgerStore.Close()

		// Initialize event publisher
		publisher, err := events.NewEventPublisher(appCfg.Pulsar.URL, appCfg.Pulsar.TopicProducer)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize event publisher")
		}
		defer publisher.Close()

		// Initialize SES client for invitation emails
		emailClient, err := initializeEmailClient(appCfg.AWS.Region)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize SES client")
		}

		// Create routes
		r := mux.NewRouter()

		service := services.NewService(appCfg, ledgerStore, publisher, emailClient)

		// Register the routes
		api := r.PathPrefix(appCfg.BasePath).Subrouter()

		// Apply the middleware to the API routes
		api.Use(middleware.WithLogger)
		api.Use(middleware.JWTMiddleware)

		// Family group routes
		api.HandleFunc("/family-groups", handlers.CreateFamilyGroup(service)).Methods(http.MethodPost)
		api.HandleFunc("/family-groups", handlers.GetMyFamilyGroup(service)).Methods(http.MethodGet)
		api.HandleFunc("/family-groups/{group-id}", handlers.GetFamilyGroup(service)).Methods(http.MethodGet)
		api.HandleFunc("/family-groups/{group-id}/invitations", handlers.CreateInvitation(service)).Methods(http.MethodPost)
		api.HandleFunc("/family-groups/{group-id}/members/{member-id}", handlers.RemoveMember(service)).Methods(http.MethodDelete)
		api.HandleFunc("/family-groups/{group-id}/members/{member-id}/role", handlers.ChangeMemberRole(service)).Methods(http.MethodPut)

		// Invitation routes
		api.HandleFunc("/invitations", handlers.GetMyInvitations(service)).Methods(http.MethodGet)
		api.HandleFunc("/invitations/{invitation-id}/respond", handlers.RespondToInvitation(service)).Methods(http.MethodPost)

		// Subscription routes
		api.HandleFunc("/subscriptions", handlers.CreateSubscription(service)).Methods(http.MethodPost)
		api.HandleFunc("/subscriptions", handlers.GetSubscriptions(service)).Methods(http.MethodGet)
		api.HandleFunc("/subscriptions/{subscription-id}", handlers.GetSubscription(service)).Methods(http.MethodGet)
		api.HandleFunc("/subscriptions/{subscription-id}", handlers.UpdateSubscription(service)).Methods(http.MethodPut)
		api.HandleFunc("/subscriptions/{subscription-id}", handlers.DeleteSubscription(service)).Methods(http.MethodDelete)

		// Sharing and split routes
		api.HandleFunc("/subscriptions/{subscription-id}/share", handlers.ShareSubscription(service)).Methods(http.MethodPost)
		api.HandleFunc("/subscriptions/{subscription-id}/share", handlers.UnshareSubscription(service)).Methods(http.MethodDelete)
		api.HandleFunc("/subscriptions/{subscription-id}/shared", handlers.GetSharedSubscription(service)).Methods(http.MethodGet)
		api.HandleFunc("/subscriptions/{subscription-id}/splits", handlers.UpdateSplits(service)).Methods(http.MethodPut)
		api.HandleFunc("/subscriptions/{subscription-id}/splits/{user-id}/paid", handlers.MarkSplitPaid(service)).Methods(http.MethodPost)

		log.Info().Msg(fmt.Sprintf("Server started at %s:%d", host, port))

		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", host, port),
			r); err != nil {

			log.Error().Err(err).Msg("could not start server")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&host, "host", "0.0.0.0", "host to run the server on")
	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run the server on")
}

// initializeEmailClient initializes the AWS SES v2 client.
func initializeEmailClient(region string) (*sesv2.Client, error) {
	cfg, err := awsclient.LoadAWSConfig(region)
	if err != nil {
		return nil, err
	}

	return awsclient.NewSESClient(cfg), nil
}
