package api

import (
	"github.com/ascenthq/ascent/internal/config"
	"github.com/gorilla/mux"
)

// Handlers groups the constructed endpoint handlers for route registration.
type Handlers struct {
	System        *SystemHandler
	Auth          *AuthHandler
	Invitations   *InvitationsHandler
	Campaigns     *CampaignsHandler
	Organizations *OrganizationsHandler
	Users         *UsersHandler
	Assessments   *AssessmentsHandler
	Webhooks      *WebhooksHandler
}

func SetupRoutes(cfg *config.Config, version, buildTime string, h Handlers) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Open endpoints
	r.HandleFunc("/version", h.System.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", h.System.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", h.Auth.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", h.Auth.Signin).Methods("POST")

	// Participant-facing endpoints: authenticated by invite code possession
	r.HandleFunc("/start", h.Invitations.StartHandler).Methods("GET")
	r.HandleFunc("/v1/track/{code}", h.Invitations.TrackHandler).Methods("POST")
	r.HandleFunc("/v1/assessments/{code}/complete", h.Invitations.CompleteHandler).Methods("POST")

	// Shared results: authenticated by share id possession
	r.HandleFunc("/v1/results/{shareID}", h.Assessments.GetResult).Methods("GET")
	r.HandleFunc("/v1/results/{shareID}/unified", h.Assessments.GetUnifiedResult).Methods("GET")

	// Identity provider webhook
	r.HandleFunc("/v1/webhooks/identity", h.Webhooks.IdentityWebhook).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", h.Auth.Signout).Methods("POST")

	// Invitation endpoints
	apiV1.HandleFunc("/invitations", h.Invitations.CreateInvitation).Methods("POST")
	apiV1.HandleFunc("/invitations", h.Invitations.ListInvitations).Methods("GET")
	apiV1.HandleFunc("/invitations/{code}", h.Invitations.GetInvitation).Methods("GET")
	apiV1.HandleFunc("/invitations/{code}/resend", h.Invitations.ResendInvitation).Methods("POST")

	// Campaign endpoints
	apiV1.HandleFunc("/campaigns", h.Campaigns.LaunchCampaign).Methods("POST")
	apiV1.HandleFunc("/campaigns", h.Campaigns.ListCampaigns).Methods("GET")
	apiV1.HandleFunc("/campaigns/draft", h.Campaigns.DraftCampaign).Methods("POST")
	apiV1.HandleFunc("/campaigns/secure", h.Campaigns.SecureLaunchCampaign).Methods("POST")
	apiV1.HandleFunc("/campaigns/{id}/results", h.Campaigns.CampaignResults).Methods("GET")
	apiV1.HandleFunc("/campaigns/{id}/complete", h.Campaigns.CompleteCampaign).Methods("POST")

	// Organization endpoints
	apiV1.HandleFunc("/organizations", h.Organizations.CreateOrganization).Methods("POST")
	apiV1.HandleFunc("/organizations", h.Organizations.ListOrganizations).Methods("GET")
	apiV1.HandleFunc("/organizations/{id}", h.Organizations.GetOrganization).Methods("GET")
	apiV1.HandleFunc("/organizations/{id}", h.Organizations.UpdateOrganization).Methods("PATCH")

	// User data removal
	apiV1.HandleFunc("/users/{email}", h.Users.DeleteUser).Methods("DELETE")

	return r
}
