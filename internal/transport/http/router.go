package http

import (
	"net/http"

	"github.com/go-auth-nosql/internal/application/auth"
	"github.com/go-auth-nosql/internal/application/notification"
	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/infrastructure/sns"
	"github.com/go-auth-nosql/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-nosql/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

const appName = "Auth"

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	events := deps.Events
	if events == nil {
		events = sns.Noop{}
	}
	attempts := deps.Attempts
	if attempts == nil {
		attempts = appmiddleware.NewWindowCounter(cfg.AttemptLimit, cfg.AttemptWindow)
	}
	globalAttempts := deps.GlobalAttempts
	if globalAttempts == nil {
		globalAttempts = appmiddleware.NewWindowCounter(cfg.AttemptGlobalLimit, cfg.AttemptWindow)
	}
	guarded := func(scope string) func(http.Handler) http.Handler {
		perClient := appmiddleware.Attempts(attempts, scope, appmiddleware.PerClient)
		allClients := appmiddleware.Attempts(globalAttempts, scope, appmiddleware.AllClients)
		return func(next http.Handler) http.Handler { return perClient(allClients(next)) }
	}

	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	authMw := appmiddleware.Auth(deps.JWTProvider, cfg.CookieName)

	notifSvc := notification.NewService(deps.Mailer, notification.Options{
		AppName:              appName,
		VerificationTokenTTL: cfg.VerificationTokenTTL,
		ResetTokenTTL:        cfg.ResetTokenTTL,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:             deps.UserRepo,
		Hasher:               deps.Hasher,
		JWTProvider:          deps.JWTProvider,
		Notifier:             notifSvc,
		Events:               events,
		VerificationTokenTTL: cfg.VerificationTokenTTL,
		ResetTokenTTL:        cfg.ResetTokenTTL,
		ClientURL:            cfg.ClientURL,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, handler.CookieConfig{
		Name:   cfg.CookieName,
		MaxAge: deps.JWTProvider.Expiry(),
		Secure: cfg.IsProduction(),
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/health", healthH.Health)
		r.Post("/logout", authH.Logout)
		r.With(authMw).Get("/check-auth", authH.CheckAuth)

		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/signup", authH.Signup)
			r.Post("/login", authH.Login)
			r.Post("/forgot-password", authH.ForgotPassword)
			r.With(guarded("verify-email")).Post("/verify-email", authH.VerifyEmail)
			r.With(guarded("reset-password")).Post("/reset-password/{token}", authH.ResetPassword)
		})
	})

	return r
}
