package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/ree-portal/agent-onboarding/docs"
	"github.com/ree-portal/agent-onboarding/internal/api/handler"
	"github.com/ree-portal/agent-onboarding/internal/api/middleware"
	"github.com/ree-portal/agent-onboarding/internal/core/access"
	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

const metricsSubsystem = "portal"

// Deps are the collaborators the HTTP layer is built on.
type Deps struct {
	Visitors middleware.VisitorSource
	Objects  handler.ObjectSource
	// Checks are pinged by the readiness probe, keyed by dependency name.
	Checks map[string]handler.Checker
	// Registerer and Gatherer default to the global prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Log        zerolog.Logger
}

type Options struct {
	MaxReceiptBytes int64
	SecureCookie    bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps, opts Options) *echo.Echo {
	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: deps.Registerer,
	}))

	// --- Ops (no visitor state) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Checks)
	storageHandler := handler.NewStorageHandler(deps.Objects)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: deps.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/storage/v1/object/public/:bucket/*", storageHandler.PublicObject)

	// --- Portal ---
	views := handler.NewViewHandler()
	authHandler := handler.NewAuthHandler()
	uploadHandler := handler.NewUploadHandler(opts.MaxReceiptBytes)
	profileHandler := handler.NewProfileHandler()
	adminHandler := handler.NewAdminHandler()

	// Every portal route runs with the visitor of the request.
	visitor := middleware.Visitor(deps.Visitors, opts.SecureCookie)

	e.GET(access.ViewLanding.Path(), views.Landing, visitor, middleware.Guard(access.ViewLanding))
	e.GET(access.ViewAuth.Path(), views.Auth, visitor, middleware.Guard(access.ViewAuth))
	e.GET(access.ViewPending.Path(), views.Pending, visitor, middleware.Guard(access.ViewPending))
	e.GET(access.ViewAgentDashboard.Path(), views.AgentDashboard, visitor, middleware.Guard(access.ViewAgentDashboard))
	e.GET(access.ViewAdminDashboard.Path(), views.AdminDashboard, visitor, middleware.Guard(access.ViewAdminDashboard))

	e.POST("/auth/signup", authHandler.SignUp, visitor)
	e.POST("/auth/login", authHandler.Login, visitor)
	e.POST("/auth/logout", authHandler.Logout, visitor)
	e.POST("/auth/refresh", authHandler.Refresh, visitor)

	e.POST("/uploads/receipt", uploadHandler.UploadReceipt, visitor)
	e.DELETE("/uploads/receipt", uploadHandler.RemoveReceipt, visitor)

	e.PATCH("/profile", profileHandler.Update, visitor)

	admin := e.Group("/admin", visitor, middleware.RBAC(domain.RoleSuperAdmin))
	admin.POST("/agents/:id/approve", adminHandler.Approve)
	admin.POST("/agents/:id/reject", adminHandler.Reject)
	admin.GET("/agents/:id/receipt", adminHandler.Receipt)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
