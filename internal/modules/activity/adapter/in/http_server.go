package in

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"worktally/internal/modules/activity/dto"
	activityin "worktally/internal/modules/activity/port/in"
	apperrors "worktally/internal/platform/errors"
	"worktally/internal/platform/logging"
)

type ServerConfig struct {
	Addr string
	// AccessLog receives one line per request; nil disables access logging.
	AccessLog io.Writer
}

// Server is the read-only local query API used by status bars and panels.
type Server struct {
	app     *fiber.App
	usecase activityin.Usecase
	cfg     ServerConfig
	logger  *slog.Logger
}

func NewServer(cfg ServerConfig, usecase activityin.Usecase, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	if cfg.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "${time} | ${status} | ${latency} | ${method} ${path}\n",
			Output: cfg.AccessLog,
		}))
	}
	app.Use(cors.New())

	srv := &Server{app: app, usecase: usecase, cfg: cfg, logger: logging.OrDefault(log)}
	srv.registerRoutes()
	return srv
}

// App exposes the underlying fiber application, mainly for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()

	s.logger.Info("query api listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api/v1")
	api.Get("/today", s.handleToday)
	api.Get("/days/:date", s.handleDay)
	api.Get("/stats", s.handleStats)
}

func (s *Server) handleToday(c *fiber.Ctx) error {
	minDuration, err := parseMinDuration(c)
	if err != nil {
		return err
	}
	out, err := s.usecase.DaySessions(c.UserContext(), dto.DayInput{MinDuration: minDuration})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}

func (s *Server) handleDay(c *fiber.Ctx) error {
	minDuration, err := parseMinDuration(c)
	if err != nil {
		return err
	}
	out, err := s.usecase.DaySessions(c.UserContext(), dto.DayInput{DateKey: c.Params("date"), MinDuration: minDuration})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	out, err := s.usecase.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": out})
}

func parseMinDuration(c *fiber.Ctx) (time.Duration, error) {
	raw := c.Query("minDuration")
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid minDuration %q", raw))
	}
	return d, nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		status = fe.Code
	case errors.Is(err, apperrors.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, apperrors.ErrOpenDay):
		status = fiber.StatusConflict
	case errors.Is(err, apperrors.ErrNotFound):
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
