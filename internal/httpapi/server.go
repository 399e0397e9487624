// Package httpapi implements C9: the Taler-facing HTTP façade exposing
// taler-wire-gateway and taler-revenue endpoints over the reconciliation
// store, grounded on stronghold's internal/server + internal/middleware
// + internal/handlers shape.
package httpapi

import (
	"context"
	"fmt"
	"net"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"libeufin-nexus/internal/scheduler"
	"libeufin-nexus/internal/store"
)

// Config holds the façade's per-account, per-deployment parameters
// (nexus-httpd + nexus-ebics currency, spec §4.9).
type Config struct {
	Currency       string
	AccountPayto   string
	BearerToken    string
	AuthEnabled    bool
	RateLimitMax   int
	RateLimitWindowSeconds int
}

// Server wraps the Fiber app over the store and scheduler.
type Server struct {
	app   *fiber.App
	cfg   Config
	db    *store.DB
	sched *scheduler.Scheduler
}

// New constructs a Server. sched may be nil (e.g. under `ebics-submit`
// one-shot CLI invocations that never start the façade), in which case
// /readyz reports only database connectivity.
func New(cfg Config, db *store.DB, sched *scheduler.Scheduler) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "libeufin-nexus",
		ErrorHandler: errorHandler,
	})

	s := &Server{app: app, cfg: cfg, db: db, sched: sched}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} ${latency}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
	}))
	s.app.Use(requestID())
	s.app.Use(rateLimit(s.cfg.RateLimitMax, s.cfg.RateLimitWindowSeconds))
	s.app.Use(bearerAuth(s.cfg.BearerToken, s.cfg.AuthEnabled))
}

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", s.getHealthz)
	s.app.Get("/readyz", s.getReadyz)

	wg := s.app.Group("/taler-wire-gateway")
	wg.Get("/config", s.getWireGatewayConfig)
	wg.Post("/transfer", s.postTransfer)
	wg.Post("/admin/add-incoming", s.postAddIncoming)
	wg.Get("/history/incoming", s.getHistoryIncoming)
	wg.Get("/history/outgoing", s.getHistoryOutgoing)

	rev := s.app.Group("/taler-revenue")
	rev.Get("/config", s.getRevenueConfig)
	rev.Get("/history", s.getRevenueHistory)

	s.app.Use(func(c fiber.Ctx) error {
		return errJSON(c, fiber.StatusNotFound, ecGenericJSONInvalid, "no such endpoint")
	})
}

// Listen serves HTTP on addr until the process exits or ShutdownWithContext
// is called, following stronghold's Server.Start/Shutdown split.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// ListenUnix serves HTTP over a Unix domain socket, for nexus-httpd.serve
// = "unix" (spec §6).
func (s *Server) ListenUnix(path string) error {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("httpapi: listen unix %s: %w", path, err)
	}
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// Addr formats a host:port or unix path per nexus-httpd.serve.
func Addr(serve, port, unixPath string) (string, error) {
	switch serve {
	case "unix":
		return unixPath, nil
	case "tcp", "":
		return ":" + port, nil
	default:
		return "", fmt.Errorf("httpapi: unknown nexus-httpd.serve %q", serve)
	}
}
