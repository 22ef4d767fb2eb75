package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/edgevision/go-livedetect/internal/log"
	"github.com/edgevision/go-livedetect/pkg/hub"
	"github.com/edgevision/go-livedetect/pkg/pipeline"
)

// SessionRequest carries the browser's SDP offer.
type SessionRequest struct {
	SDP string `json:"sdp"`
}

// SessionResponse carries the server's SDP answer.
type SessionResponse struct {
	SDP string `json:"sdp"`
}

// ControlsRequest is the control surface payload, pushed by the UI after
// each interaction.
type ControlsRequest struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"`
}

// handleStatus returns the current status snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleSession starts a WebRTC session from the browser's offer and
// returns the answer.
func (s *Server) handleSession(c *fiber.Ctx) error {
	var req SessionRequest
	if err := c.BodyParser(&req); err != nil || req.SDP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing sdp offer",
		})
	}

	answer, err := s.sessions.Start(req.SDP)
	if err != nil {
		log.Error("start session", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(SessionResponse{SDP: answer})
}

// handleControls pushes the UI's toggle and slider values into the
// processor. The threshold is clamped to the slider's range.
func (s *Server) handleControls(c *fiber.Ctx) error {
	var req ControlsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid controls payload",
		})
	}

	threshold := req.Threshold
	if threshold < pipeline.MinThreshold {
		threshold = pipeline.MinThreshold
	}
	if threshold > pipeline.MaxThreshold {
		threshold = pipeline.MaxThreshold
	}

	s.processor.SetEnabled(req.Enabled)
	s.processor.SetThreshold(threshold)

	s.broadcastStatus()
	return c.JSON(s.status())
}

// handleStatusWS streams status updates to the UI.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)

	// Send the current snapshot right away
	s.broadcastStatus()

	client.Run()
}
