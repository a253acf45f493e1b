package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/storefront-api/internal/application/account"
	contactapp "github.com/storefront-api/internal/application/contact"
	profileapp "github.com/storefront-api/internal/application/profile"
	"github.com/storefront-api/internal/application/session"
	"github.com/storefront-api/internal/application/verification"
	"github.com/storefront-api/internal/config"
	googleinfra "github.com/storefront-api/internal/infrastructure/google"
	jwtinfra "github.com/storefront-api/internal/infrastructure/jwt"
	s3infra "github.com/storefront-api/internal/infrastructure/s3"
	"github.com/storefront-api/internal/infrastructure/smtp"
	"github.com/storefront-api/internal/infrastructure/sns"
	"github.com/storefront-api/internal/transport/http/handler"
	appmiddleware "github.com/storefront-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo       UserRepository
	SessionRepo    SessionRepository
	ProfileRepo    ProfileRepository
	ContactRepo    ContactRepository
	S3Store        *s3infra.Store
	Mailer         smtp.Mailer
	SMSSender      sns.SMSSender
	JWTProvider    *jwtinfra.Provider
	GoogleVerifier *googleinfra.Verifier
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	sessionDeps := session.ServiceDeps{
		SessionRepo:     deps.SessionRepo,
		UserRepo:        deps.UserRepo,
		JWTProvider:     deps.JWTProvider,
		RefreshTokenDur: cfg.RefreshTokenDur,
	}
	if deps.GoogleVerifier != nil {
		sessionDeps.GoogleVerifier = deps.GoogleVerifier
	}
	sessionSvc := session.NewService(sessionDeps)

	verifySvc := verification.NewService(deps.UserRepo)
	accountSvc := account.NewService(account.ServiceDeps{
		UserRepo:      deps.UserRepo,
		ProfileRepo:   deps.ProfileRepo,
		SessionRepo:   deps.SessionRepo,
		Verifier:      verifySvc,
		Mailer:        deps.Mailer,
		SMSSender:     deps.SMSSender,
		AdminEmail:    cfg.AdminEmail,
		OpsAlertPhone: cfg.OpsAlertPhone,
	})
	profileSvc := profileapp.NewService(deps.ProfileRepo, deps.S3Store, s3infra.ContentTypeForFilename)
	contactSvc := contactapp.NewService(deps.ContactRepo, deps.Mailer, cfg.AdminEmail)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(sessionSvc)
	accountH := handler.NewAccountHandler(accountSvc)
	profileH := handler.NewProfileHandler(profileSvc)
	contactH := handler.NewContactHandler(contactSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.With(sensitiveRL.Limit).Post("/sessions/google", sessionH.LoginWithGoogle)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/contact", contactH.Submit)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Post("/account/username/request", accountH.RequestUsernameChange)
			r.Post("/account/username/confirm", accountH.ChangeUsername)
			r.Post("/account/email/request", accountH.RequestEmailChange)
			r.Post("/account/email/confirm", accountH.VerifyEmailChange)
			r.Post("/account/password", accountH.ChangePassword)
			r.Post("/account/deletion/request", accountH.RequestDeletion)
			r.Post("/account/deletion/confirm", accountH.ConfirmDeletion)
			r.Post("/account/verification/resend", accountH.ResendVerification)

			r.Get("/profile", profileH.Get)
			r.Put("/profile", profileH.Update)
			r.Post("/profile/avatar", profileH.UploadAvatar)
		})
	})

	return r
}
