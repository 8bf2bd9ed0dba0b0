// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, caller resolution and rate limiting.
//
// Route groups:
//   - /telegram/webhook      Telegram updates, query credentials (RelayRoles)
//   - /botnorrea/...         chat management commands, query credentials (AdminRoles)
//   - <APIBasePath>/...      record façades and webhook registration, bearer tokens
//   - /authorize             the token authorizer itself
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
	"github.com/jotacemarin/botnorrea-v2/internal/config"
	"github.com/jotacemarin/botnorrea-v2/internal/docs"
	"github.com/jotacemarin/botnorrea-v2/internal/http/handlers"
	"github.com/jotacemarin/botnorrea-v2/internal/http/middleware"
	"github.com/jotacemarin/botnorrea-v2/internal/services"
	"github.com/jotacemarin/botnorrea-v2/internal/telegram"
)

// relayWebhookPath receives Telegram updates.
const relayWebhookPath = "/telegram/webhook"

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. tg may be nil, in which case chat replies and webhook registration
// are unavailable.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: request-scoped logger with secrets masked
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS, security headers and gzip
//  8. Per group: caller resolution, then the rate limiter keyed by caller
func RegisterRoutes(r *gin.Engine, db *gorm.DB, tg *telegram.Client, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger(middleware.LogOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:          cfg.Security.EnableHSTS,
		HSTSMaxAge:          cfg.Security.HSTSMaxAge,
		NoStore:             false,
		EnablePolicy:        true,
		PrivateCredentialed: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/telegram
	users := services.NewUserService(db, cfg.Tables.Users)
	groups := services.NewGroupService(db, cfg.Tables.Groups)
	commands := services.NewCommandService(db, cfg.Tables.Commands)
	relay := services.NewHTTPRelay(cfg.RelayTimeout)
	authz := auth.NewAuthorizer(users, cfg.IdentityKey)

	dispatch := &services.DispatchService{
		Users:        users,
		Groups:       groups,
		Commands:     commands,
		Relay:        relay,
		DB:           db,
		ReceiptTable: cfg.Tables.Updates,
		ReceiptTTL:   cfg.ReceiptTTL,
	}
	bot := &services.BotService{
		Users:     users,
		Commands:  commands,
		BotName:   cfg.Telegram.BotName,
		BotDomain: cfg.Telegram.Domain,
		APIPath:   cfg.APIBasePath,
	}
	if cfg.ProbeEnabled {
		bot.Probe = relay
	}
	deps := handlers.Deps{
		Users:      users,
		Commands:   commands,
		Dispatch:   dispatch,
		Bot:        bot,
		Authorizer: authz,
	}
	if tg != nil {
		bot.Messenger = tg
		deps.Webhook = tg
	}
	h := handlers.New(deps)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByCallerOrIP())

	// Telegram updates: never rate limited, redeliveries would follow.
	r.POST(relayWebhookPath, middleware.RequireElevated(users, auth.RelayRoles...), h.TelegramWebhook)

	// Chat management commands
	bm := r.Group("/botnorrea", middleware.RequireElevated(users, auth.AdminRoles...), rl.Handler())
	{
		bm.POST("/commands/create", h.CreateCommand)
		bm.POST("/commands/list", h.ListCommands)
		bm.POST("/commands/remove", h.RemoveCommand)
		bm.POST("/api-key", h.CreateAPIKey)
	}

	// Token authorizer contract
	r.POST("/authorize", rl.Handler(), h.Authorize)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	fac := api.Group("", handlers.CRUDMethods(), middleware.Authorize(authz), rl.Handler())
	{
		fac.Any("/users", h.Users)
		fac.Any("/users/:id", h.Users)
		fac.Any("/commands", h.Commands)
		fac.Any("/commands/:id", h.Commands)
		fac.POST("/telegram/webhook", h.SetWebhook)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error. maxBytes <= 0 disables the cap.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
