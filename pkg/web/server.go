// Package web serves the demo page, WebRTC signaling, and the control API.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/edgevision/go-livedetect/internal/log"
	"github.com/edgevision/go-livedetect/pkg/hub"
	"github.com/edgevision/go-livedetect/pkg/pipeline"
	"github.com/edgevision/go-livedetect/pkg/rtc"
)

// Status is what the UI renders in its status line.
type Status struct {
	Connected   bool    `json:"connected"`
	Enabled     bool    `json:"enabled"`
	Threshold   float64 `json:"threshold"`
	ModelLoaded bool    `json:"model_loaded"`
	Frames      uint64  `json:"frames"`
	Detections  uint64  `json:"detections"`
}

// Server is the demo HTTP server.
type Server struct {
	app       *fiber.App
	port      string
	staticDir string

	processor *pipeline.Processor
	sessions  *rtc.Manager
	statusHub *hub.Hub

	done     chan struct{}
	stopOnce sync.Once
}

// NewServer wires the fiber app around the processor and session manager.
func NewServer(port, staticDir string, proc *pipeline.Processor, sessions *rtc.Manager) *Server {
	s := &Server{
		port:      port,
		staticDir: staticDir,
		processor: proc,
		sessions:  sessions,
		statusHub: hub.New("status"),
		done:      make(chan struct{}),
	}
	sessions.OnChange = s.broadcastStatus

	app := fiber.New(fiber.Config{
		AppName:               "livedetect",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Static("/", staticDir)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/session", s.handleSession)
	api.Post("/controls", s.handleControls)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start runs the server. Blocks until shutdown.
func (s *Server) Start() error {
	go s.statusHub.Run()
	go s.statusTicker()
	log.Info("serving demo UI", "addr", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// statusTicker pushes periodic snapshots so frame counters stay live on
// connected status listeners. Runs until Shutdown.
func (s *Server) statusTicker() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() > 0 {
				s.broadcastStatus()
			}
		}
	}
}

// Shutdown gracefully stops the server and the active session.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() { close(s.done) })
	s.sessions.Close()
	return s.app.Shutdown()
}

// status snapshots the current state for the UI.
func (s *Server) status() Status {
	frames, objects := s.processor.Stats()
	return Status{
		Connected:   s.sessions.Active(),
		Enabled:     s.processor.Enabled(),
		Threshold:   s.processor.Threshold(),
		ModelLoaded: s.processor.Loaded(),
		Frames:      frames,
		Detections:  objects,
	}
}

// broadcastStatus pushes the current status to websocket listeners.
func (s *Server) broadcastStatus() {
	s.statusHub.BroadcastJSON(s.status())
}
