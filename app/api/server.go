package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"salesbot/app/client/factsdb"
	"salesbot/app/config"
	"salesbot/app/service/engine"
	"salesbot/app/service/registry"
	"salesbot/app/service/transcript"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const shutdownTimeout = 10 * time.Second

// Controller is the session management surface exposed over HTTP and MCP.
type Controller interface {
	StartSession(ctx context.Context, chatID, propertyID string) (engine.Snapshot, error)
	Stop(chatID string) bool
	StopAll() int
	List() []engine.Snapshot
	Status(chatID string) (engine.Snapshot, bool)
}

type Transcripts interface {
	Read(chatID string) ([]transcript.Entry, error)
}

type Server struct {
	listen      string
	ctrl        Controller
	transcripts Transcripts
	app         *fiber.App
	mcp         *server.MCPServer
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewServer(
		cfg.Server.Listen,
		do.MustInvoke[*registry.Service](di),
		do.MustInvoke[*transcript.Service](di),
	), nil
}

func NewServer(listen string, ctrl Controller, transcripts Transcripts) *Server {
	s := &Server{
		listen:      listen,
		ctrl:        ctrl,
		transcripts: transcripts,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "salesbot",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())

	s.mcp = newMCPServer(ctrl)

	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Post("/sessions", s.startSession)
	api.Get("/sessions", s.listSessions)
	api.Delete("/sessions", s.stopAllSessions)
	api.Get("/sessions/:chatId", s.sessionStatus)
	api.Delete("/sessions/:chatId", s.stopSession)
	api.Get("/sessions/:chatId/transcript", s.sessionTranscript)

	api.Post("/start-bot", s.legacyStart)
	api.Post("/stop-bot", s.legacyStop)
	api.Get("/status", s.legacyStatus)

	s.app.All("/mcp", adaptor.HTTPHandler(server.NewStreamableHTTPServer(s.mcp)))

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Control surface listening", "addr", s.listen)
		errCh <- s.app.Listen(s.listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}

	return <-errCh
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(ErrorResponse{Error: errorMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrSessionExists), errors.Is(err, registry.ErrSessionStopping):
		return http.StatusConflict
	case errors.Is(err, registry.ErrCapacityReached):
		return http.StatusTooManyRequests
	case errors.Is(err, factsdb.ErrPropertyNotFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	for _, sentinel := range []error{registry.ErrSessionExists, registry.ErrSessionStopping, registry.ErrCapacityReached, factsdb.ErrPropertyNotFound} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}

	return err.Error()
}
