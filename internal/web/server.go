// Package web exposes the scanner to a host over HTTP: exchange ingest,
// scan triggers, queue and issue listings, live events and metrics.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fluxfuzzer/fluxscan/internal/queue"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
)

// RequestStore records observed base requests
type RequestStore interface {
	Put(req *types.BaseRequest) string
}

// Scheduler accepts active scan triggers
type Scheduler interface {
	OnScanRequested(ctx context.Context, requestID string) (string, error)
	Jobs() []queue.Job
}

// PassiveChecker inspects an observed response
type PassiveChecker interface {
	OnResponseObserved(resp *types.Response) int
}

// Options wires the server to the rest of the scanner
type Options struct {
	Store     RequestStore
	Scheduler Scheduler
	Passive   PassiveChecker
	Hub       *Hub
	Metrics   http.Handler // nil disables /metrics
	Logger    *slog.Logger
}

// Server is the host API server
type Server struct {
	app       *fiber.App
	store     RequestStore
	scheduler Scheduler
	passive   PassiveChecker
	hub       *Hub
	logger    *slog.Logger
}

// NewServer creates the server and registers its routes
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		store:     opts.Store,
		scheduler: opts.Scheduler,
		passive:   opts.Passive,
		hub:       opts.Hub,
		logger:    opts.Logger,
	}
	s.setupRoutes(opts.Metrics)
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(metrics http.Handler) {
	s.app.Use(cors.New())

	api := s.app.Group("/api")
	api.Post("/exchanges", s.handleExchange)
	api.Post("/scans", s.handleScan)
	api.Get("/queue", s.handleQueue)
	api.Get("/issues", s.handleIssues)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.hub.serve))

	if metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}

	s.app.Get("/", s.handleDashboard)
}

// exchangeRequest is the ingest payload for one observed exchange
type exchangeRequest struct {
	Request struct {
		ID      string        `json:"id"`
		Method  string        `json:"method"`
		URL     string        `json:"url"`
		Headers types.Headers `json:"headers"`
		Body    string        `json:"body"`
	} `json:"request"`
	Response *struct {
		StatusCode int           `json:"statusCode"`
		Headers    types.Headers `json:"headers"`
		Body       string        `json:"body"`
	} `json:"response"`
}

// handleExchange records the request and runs the passive checks on the
// response when one is included
func (s *Server) handleExchange(c *fiber.Ctx) error {
	var in exchangeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	base, err := types.NewBaseRequest(in.Request.Method, in.Request.URL, in.Request.Headers, []byte(in.Request.Body))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	base.ID = in.Request.ID
	id := s.store.Put(base)

	found := 0
	if in.Response != nil && s.passive != nil {
		req := base.ToRequest()
		req.ID = id
		found = s.passive.OnResponseObserved(&types.Response{
			RequestID:  id,
			StatusCode: in.Response.StatusCode,
			Headers:    in.Response.Headers,
			Body:       []byte(in.Response.Body),
			Request:    req,
		})
	}

	s.logger.Debug("exchange recorded",
		slog.String("request_id", id),
		slog.String("url", base.FullURL()),
		slog.Int("passive_issues", found),
	)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"requestId": id,
		"issues":    found,
	})
}

// handleScan queues an active scan of a recorded request
func (s *Server) handleScan(c *fiber.Ctx) error {
	var in struct {
		RequestID string `json:"requestId"`
	}
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if in.RequestID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "requestId is required")
	}

	scanID, err := s.scheduler.OnScanRequested(c.UserContext(), in.RequestID)
	if errors.Is(err, queue.ErrRequestNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"scanId": scanID})
}

// handleQueue returns the active set
func (s *Server) handleQueue(c *fiber.Ctx) error {
	return c.JSON(s.scheduler.Jobs())
}

// handleIssues returns every issue reported so far
func (s *Server) handleIssues(c *fiber.Ctx) error {
	return c.JSON(s.hub.Issues())
}

// Start starts the web server
func (s *Server) Start(addr string) error {
	s.logger.Info("web server starting", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Stop stops the web server
func (s *Server) Stop() error {
	s.hub.Close()
	return s.app.Shutdown()
}
