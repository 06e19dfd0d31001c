// Package httpapi exposes the insight engine to the CRM frontend. All
// routes sit under a versioned prefix and require a resolved tenant:
// authentication happens upstream, and the engine trusts the tenant ID the
// gateway forwards in the X-Tenant-ID header.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Relayline/pulse/internal/embed"
	"github.com/Relayline/pulse/internal/history"
	"github.com/Relayline/pulse/internal/insight"
)

// TenantHeader carries the tenant resolved by the upstream gateway.
const TenantHeader = "X-Tenant-ID"

const tenantContextKey = "pulse.tenant"

// Server is the HTTP surface of the insight engine.
type Server struct {
	echo      *echo.Echo
	insights  *insight.Service
	generator *embed.Generator
	histStore history.Store
	histLimit int
}

// NewServer wires the routes. histStore may be nil; the chatbot routes
// then report the history backend as unavailable.
func NewServer(insights *insight.Service, generator *embed.Generator, histStore history.Store, histLimit int) *Server {
	s := &Server{
		insights:  insights,
		generator: generator,
		histStore: histStore,
		histLimit: histLimit,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger)

	api := e.Group("/api/v1")
	api.Use(requireTenant)

	ai := api.Group("/ai")
	ai.POST("/generate-embeddings", s.handleGenerateEmbeddings)
	ai.GET("/deal-coach/:dealId", s.handleDealCoach)
	ai.GET("/persona-builder/:contactId", s.handlePersonaBuilder)
	ai.POST("/objection-handler", s.handleObjectionHandler)
	ai.GET("/win-loss-explainer/:dealId", s.handleWinLoss)

	chatbot := api.Group("/chatbot")
	chatbot.POST("/messages", s.handleAppendMessage)
	chatbot.GET("/messages", s.handleListMessages)

	s.echo = e
	return s
}

// Start runs the server until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requireTenant rejects requests without a resolved tenant. The header is
// set by the authenticating gateway; an empty value means the request
// never passed auth.
func requireTenant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenant := c.Request().Header.Get(TenantHeader)
		if tenant == "" {
			return c.JSON(http.StatusUnauthorized, errorBody{
				Error:   "unauthenticated",
				Message: "missing tenant identity",
			})
		}
		c.Set(tenantContextKey, tenant)
		return next(c)
	}
}

func tenantID(c echo.Context) string {
	tenant, _ := c.Get(tenantContextKey).(string)
	return tenant
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Str("tenant_id", tenantID(c)).
			Int("status", c.Response().Status).
			Dur("duration", time.Since(start)).
			Msg("request")
		return err
	}
}
