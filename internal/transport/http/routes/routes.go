package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/transport/http/handlers"
	"github.com/arklim/social-platform-accounts/internal/transport/http/middleware"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth             *usecase.AuthService
	PasswordReset    *usecase.PasswordResetService
	UsernameRecovery *usecase.UsernameRecoveryService
	Sessions         *usecase.SessionService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	JWTManager  *security.JWTManager
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware. The
// browser-facing recovery surface lives at the configured paths; everything
// programmatic sits under /api/v1.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}
	if origins := corsOrigins(cfg); len(origins) > 0 {
		r.Use(middleware.CORS(origins))
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Auth, cfg.HTTP.LoginPath, cfg.Security.SessionCookieName)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pages := handlers.NewPagesHandler(cfg)
	recoveryHandler := handlers.NewRecoveryHandler(cfg, deps.Services.PasswordReset, deps.Services.UsernameRecovery, pages)
	authHandler := handlers.NewAuthHandler(cfg, deps.Services.Auth, pages)

	// Browser-facing surface. CSRF protection covers the form endpoints; API
	// clients authenticate with bearer tokens and are unaffected.
	browser := r.Group("")
	if cfg.Security.CSRFProtect {
		browser.Use(middleware.CSRF(middleware.CSRFOptions{
			CookieName: cfg.Security.CSRFCookieName,
			Secure:     cfg.App.IsProduction(),
		}))
	}

	browser.GET(cfg.HTTP.LoginPath, pages.Login)
	browser.POST(cfg.HTTP.LoginPath, chain(buildLoginMiddlewares(deps), authHandler.Login)...)
	browser.POST("/logout", authMiddleware, authHandler.Logout)
	browser.GET("/profile", authMiddleware, authHandler.Profile)

	resetMiddlewares := buildPasswordResetMiddlewares(deps)
	browser.GET(cfg.HTTP.ResetPath, pages.ResetRequest)
	browser.POST(cfg.HTTP.ResetPath, chain(resetMiddlewares, recoveryHandler.Forgot)...)
	browser.GET(cfg.HTTP.ResetPath+"/:token", recoveryHandler.ResetLanding)
	browser.POST(cfg.HTTP.ResetPath+"/:token", chain(resetMiddlewares, recoveryHandler.Reset)...)

	// Username recovery routes exist only behind the feature flag; with the
	// flag off the paths 404 like any unregistered route.
	if cfg.Recovery.UsernameRecoveryEnabled && deps.Services.UsernameRecovery != nil {
		recoverMiddlewares := buildUsernameRecoveryMiddlewares(deps)
		browser.GET(cfg.HTTP.UsernameRecoveryPath, pages.UsernameRecovery)
		browser.POST(cfg.HTTP.UsernameRecoveryPath, chain(recoverMiddlewares, recoveryHandler.RecoverUsername)...)
	}

	api := r.Group("/api/v1")
	{
		api.POST("/tokens/refresh", authHandler.Refresh)

		sessionHandler := handlers.NewSessionHandler(deps.Services.Sessions)
		sessionGroup := api.Group("/sessions")
		sessionGroup.Use(authMiddleware)
		sessionHandler.RegisterRoutes(sessionGroup)

		if cfg.App.IsDevelopment() {
			api.POST("/recovery/reset/initiate", recoveryHandler.DevInitiateReset)
		}
	}

	if deps.JWTManager != nil {
		jwksHandler := handlers.NewJWKSHandler(deps.JWTManager)
		r.GET("/.well-known/jwks.json", jwksHandler.Keys)
	}

	handlers.RegisterSwagger(r)

	return r
}

func chain(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	combined := append([]gin.HandlerFunc{}, middlewares...)
	return append(combined, handler)
}

func corsOrigins(cfg *config.AppConfig) []string {
	if cfg == nil || !cfg.SPA.Enabled || cfg.SPA.RedirectHost == "" {
		return nil
	}
	scheme := cfg.SPA.RedirectScheme
	if scheme == "" {
		scheme = "http"
	}
	return []string{scheme + "://" + cfg.SPA.RedirectHost}
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginLimit
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.LoginWindow
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

func buildPasswordResetMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.ResetIPLimit
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.ResetIPWindow
	if window <= 0 {
		window = time.Hour
	}

	rule := middleware.RateLimitRule{
		Name:       "password_reset_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

func buildUsernameRecoveryMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.UsernameRecoveryLimit
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.ResetIPWindow
	if window <= 0 {
		window = time.Hour
	}

	rule := middleware.RateLimitRule{
		Name:       "username_recovery_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
