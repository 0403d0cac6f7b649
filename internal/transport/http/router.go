package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sealdrop-api/internal/application/auth"
	"github.com/sealdrop-api/internal/application/cleanup"
	"github.com/sealdrop-api/internal/application/delivery"
	"github.com/sealdrop-api/internal/application/organization"
	"github.com/sealdrop-api/internal/application/session"
	"github.com/sealdrop-api/internal/application/subscription"
	"github.com/sealdrop-api/internal/application/waitlist"
	"github.com/sealdrop-api/internal/config"
	"github.com/sealdrop-api/internal/transport/http/handler"
	appmiddleware "github.com/sealdrop-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	sessionSvc := session.NewService(deps.SessionRepo, deps.JWTProvider)
	authMw := appmiddleware.Auth(deps.JWTProvider, sessionSvc.Check)

	proxies, err := appmiddleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		slog.Warn("ignoring invalid trusted proxies", "err", err)
	}
	// Access codes: 5 requests per client per 15 minutes.
	strictRL := appmiddleware.NewStrictLimiter(5, 15*time.Minute).TrustProxies(proxies)
	// 5 requests/second, burst of 10.
	standardRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10).TrustProxies(proxies)

	authSvc := auth.NewService(auth.ServiceDeps{
		ProfileRepo:      deps.ProfileRepo,
		OrganizationRepo: deps.OrganizationRepo,
		Sessions:         sessionSvc,
		Google:           deps.Google,
	})
	deliverySvc := delivery.NewService(delivery.ServiceDeps{
		DeliveryRepo:     deps.DeliveryRepo,
		ProfileRepo:      deps.ProfileRepo,
		SubscriptionRepo: deps.SubscriptionRepo,
		AccessCodeRepo:   deps.AccessCodeRepo,
		Objects:          deps.S3Store,
		Notifier:         deps.Messages,
		Events:           deps.Events,
		Grants:           deps.JWTProvider,
	})
	orgSvc := organization.NewService(organization.ServiceDeps{
		ProfileRepo:      deps.ProfileRepo,
		OrganizationRepo: deps.OrganizationRepo,
		InvitationRepo:   deps.InvitationRepo,
		SubscriptionRepo: deps.SubscriptionRepo,
		Notifier:         deps.Messages,
	})
	subSvc := subscription.NewService(subscription.ServiceDeps{
		ProfileRepo:      deps.ProfileRepo,
		SubscriptionRepo: deps.SubscriptionRepo,
		EarlyAdopterRepo: deps.EarlyAdopterRepo,
		Payments:         deps.Payments,
		PlanVariants:     cfg.PlanVariants,
		AppURL:           cfg.AppURL,
		TotalSlots:       cfg.EarlyAdopterSlots,
	})
	waitlistSvc := waitlist.NewService(deps.WaitlistRepo)
	cleanupSvc := cleanup.NewService(deps.DeliveryRepo, deps.S3Store, deps.Events)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	deliveryH := handler.NewDeliveryHandler(deliverySvc)
	orgH := handler.NewOrganizationHandler(orgSvc)
	subH := handler.NewSubscriptionHandler(subSvc)
	waitlistH := handler.NewWaitlistHandler(waitlistSvc)
	cronH := handler.NewCronHandler(cleanupSvc)

	r.Route("/api", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health", healthH.Check)
		r.With(standardRL.Limit).Post("/auth/signup", authH.SignUp)
		r.With(standardRL.Limit).Post("/auth/signin", authH.SignIn)
		r.With(standardRL.Limit).Post("/auth/google", authH.Google)
		r.With(standardRL.Limit).Post("/waitlist", waitlistH.Join)
		r.With(strictRL.Limit).Post("/deliveries/{id}/request-access", deliveryH.RequestAccess)
		r.With(strictRL.Limit).Post("/deliveries/{id}/verify-access", deliveryH.VerifyAccess)
		r.With(standardRL.Limit).Get("/deliveries/{id}/files/{fileID}/download", deliveryH.Download)
		r.With(appmiddleware.CronAuth(cfg.CronSecret)).Get("/cronjobs", cronH.Cleanup)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/auth/signout", authH.SignOut)
			r.Get("/auth/user", authH.User)

			r.Get("/deliveries", deliveryH.List)
			r.Post("/deliveries", deliveryH.Create)
			r.Get("/deliveries/{id}", deliveryH.Get)
			r.Post("/deliveries/{id}/status", deliveryH.UpdateStatus)

			r.Get("/organization/members", orgH.ListMembers)
			r.Patch("/organization/members/{id}/role", orgH.ChangeRole)
			r.Delete("/organization/members/{id}", orgH.RemoveMember)
			r.Get("/organization/invitations", orgH.ListInvitations)
			r.Post("/organization/invitations", orgH.Invite)
			r.Delete("/organization/invitations/{id}", orgH.CancelInvitation)
			r.Post("/organization/invitations/{id}/accept", orgH.AcceptInvitation)

			r.Get("/subscription", subH.Get)
			r.Post("/subscription/checkout", subH.Checkout)
			r.Get("/early-adopter/status", subH.EarlyAdopterStatus)
			r.Post("/early-adopter/claim", subH.ClaimEarlyAdopter)
		})
	})

	return r
}
