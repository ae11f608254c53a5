package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/executor"
	"github.com/isdmx/runbox/language"
	"github.com/isdmx/runbox/sandbox"
)

// RequestIDHeader carries the identifier assigned to each /run request.
const RequestIDHeader = "X-Request-ID"

const pingTimeout = 2 * time.Second

// RunRequest is the body of POST /run.
type RunRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Input    string `json:"input"`
}

// LanguageInfo describes one entry of GET /languages.
type LanguageInfo struct {
	ID         string `json:"id"`
	Image      string `json:"image"`
	SourceFile string `json:"source_file"`
	Compiled   bool   `json:"compiled"`
}

// Health is the body of GET /healthz.
type Health struct {
	Status string `json:"status"`
	Engine string `json:"engine,omitempty"`
	Active int64  `json:"active"`
	Limit  int64  `json:"limit"`
}

func (s *Server) setupRoutes() {
	s.app.Post("/run", s.runHandler)
	s.app.Get("/languages", s.languagesHandler)
	s.app.Get("/healthz", s.healthHandler)
}

func (s *Server) runHandler(c *fiber.Ctx) error {
	var body RunRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	req := executor.Request{Code: body.Code, Language: body.Language, Stdin: body.Input}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	requestID := uuid.NewString()
	c.Set(RequestIDHeader, requestID)
	s.logger.Debug("run requested", zap.String("request_id", requestID), zap.String("language", body.Language))

	result := s.exec.Execute(c.UserContext(), req)
	if result.Kind == sandbox.KindCapacity {
		c.Status(fiber.StatusServiceUnavailable)
	}
	return c.JSON(result.Payload())
}

func (s *Server) languagesHandler(c *fiber.Ctx) error {
	profiles := language.All()
	out := make([]LanguageInfo, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, LanguageInfo{
			ID:         string(p.ID),
			Image:      p.Image,
			SourceFile: p.SourceFile,
			Compiled:   p.Compiled,
		})
	}
	return c.JSON(out)
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	h := Health{Status: "ok", Active: s.exec.Active(), Limit: s.exec.Limit()}
	if s.pinger == nil {
		return c.JSON(h)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
	defer cancel()
	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Warn("engine unreachable", zap.Error(err))
		h.Status = "degraded"
		h.Engine = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(h)
	}
	h.Engine = "reachable"
	return c.JSON(h)
}
