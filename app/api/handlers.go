package api

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) startSession(c *fiber.Ctx) error {
	req, err := parseStart(c)
	if err != nil {
		return err
	}

	snap, err := s.ctrl.StartSession(c.UserContext(), req.ChatID, string(req.ObjectID))
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(snap)
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	return c.JSON(SessionsResponse{Sessions: s.ctrl.List()})
}

func (s *Server) sessionStatus(c *fiber.Ctx) error {
	snap, ok := s.ctrl.Status(NormalizeChatID(c.Params("chatId")))
	if !ok {
		return fiber.NewError(http.StatusNotFound, "session not found")
	}

	return c.JSON(snap)
}

func (s *Server) stopSession(c *fiber.Ctx) error {
	if !s.ctrl.Stop(NormalizeChatID(c.Params("chatId"))) {
		return fiber.NewError(http.StatusNotFound, "session not found")
	}

	return c.JSON(fiber.Map{"stopped": true})
}

func (s *Server) stopAllSessions(c *fiber.Ctx) error {
	return c.JSON(StopResponse{Stopped: s.ctrl.StopAll()})
}

func (s *Server) sessionTranscript(c *fiber.Ctx) error {
	entries, err := s.transcripts.Read(NormalizeChatID(c.Params("chatId")))
	if err != nil {
		return err
	}

	return c.JSON(TranscriptResponse{Entries: entries})
}

func (s *Server) legacyStart(c *fiber.Ctx) error {
	req, err := parseStart(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(LegacyStartResponse{Error: err.Error()})
	}

	snap, err := s.ctrl.StartSession(c.UserContext(), req.ChatID, string(req.ObjectID))
	if err != nil {
		return c.Status(statusFor(err)).JSON(LegacyStartResponse{Error: errorMessage(err)})
	}

	return c.JSON(LegacyStartResponse{
		Success: true,
		Message: fmt.Sprintf("Бот успешно запущен для чата %s и объекта %s", req.ChatID, req.ObjectID),
		Session: &snap,
	})
}

func (s *Server) legacyStop(c *fiber.Ctx) error {
	var req StopRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}

	if req.ChatID == "" {
		return c.JSON(LegacyStopResponse{Success: true, Stopped: s.ctrl.StopAll()})
	}

	stopped := 0
	if s.ctrl.Stop(NormalizeChatID(req.ChatID)) {
		stopped = 1
	}

	return c.JSON(LegacyStopResponse{Success: stopped > 0, Stopped: stopped})
}

func (s *Server) legacyStatus(c *fiber.Ctx) error {
	sessions := s.ctrl.List()

	return c.JSON(LegacyStatusResponse{
		IsRunning: len(sessions) > 0,
		Sessions:  sessions,
	})
}

func parseStart(c *fiber.Ctx) (StartRequest, error) {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	req.ChatID = NormalizeChatID(req.ChatID)
	if req.ChatID == "" || req.ObjectID == "" {
		return req, fiber.NewError(http.StatusBadRequest, "chatId and objectId are required")
	}

	return req, nil
}
