package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/metalagman/droidagent/internal/config"
	"github.com/metalagman/droidagent/internal/events"
	"github.com/metalagman/droidagent/internal/screenshot"
	"github.com/metalagman/droidagent/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the control channel is meant for local tooling
	CheckOrigin: func(*http.Request) bool { return true },
}

// Command is one inbound control frame.
type Command struct {
	Command string `json:"command"`
	Task    string `json:"task,omitempty"`
}

// Server bridges the websocket control channel to the session registry
// and the event broadcaster.
type Server struct {
	hub         *Hub
	registry    *session.Registry
	broadcaster *events.Broadcaster
	screenshots *screenshot.Pipeline
	cfg         *config.Config

	unsubscribe func()
}

// NewServer wires a server. The screenshot pipeline may be nil when
// screenshots are disabled.
func NewServer(registry *session.Registry, broadcaster *events.Broadcaster, screenshots *screenshot.Pipeline, cfg *config.Config) *Server {
	s := &Server{
		hub:         NewHub(),
		registry:    registry,
		broadcaster: broadcaster,
		screenshots: screenshots,
		cfg:         cfg,
	}
	s.unsubscribe = broadcaster.Subscribe(events.ObserverFunc(s.forward))
	return s
}

// Handler returns the websocket upgrade handler, mounted at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	return mux
}

// Run drives the hub until the context is done.
func (s *Server) Run(ctx context.Context) {
	go s.hub.Run()
	<-ctx.Done()
	s.unsubscribe()
	s.hub.Stop()
}

// ClientCount reports the number of connected clients.
func (s *Server) ClientCount() int { return s.hub.ClientCount() }

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(s.hub, conn, uuid.NewString())
	s.hub.register <- c

	go c.writePump()
	s.send(c, events.New(events.KindConnected, "", map[string]any{"client_id": c.id}))
	c.readPump(s.handleCommand)
}

// forward relays agent lifecycle events to every connected client.
func (s *Server) forward(e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("encode event")
		return
	}
	s.hub.Broadcast(payload)
}

func (s *Server) handleCommand(c *client, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.sendError(c, "", "invalid command frame")
		return
	}

	switch cmd.Command {
	case "run":
		s.handleRun(c, cmd.Task)
	case "stop":
		s.handleStop(c)
	case "screenshot":
		s.handleScreenshot(c)
	case "status":
		s.handleStatus(c)
	case "config":
		s.handleConfig(c)
	default:
		s.sendError(c, "", "unknown command: "+cmd.Command)
	}
}

func (s *Server) handleRun(c *client, task string) {
	if task == "" {
		s.sendError(c, "", "run requires a task")
		return
	}
	// The session outlives the requesting connection on purpose: the
	// task keeps running if the client drops.
	sess, err := s.registry.Start(context.Background(), task, nil)
	if err != nil {
		s.sendError(c, "", err.Error())
		return
	}
	s.send(c, events.New(events.KindProgressUpdate, sess.ID, map[string]any{
		"status": string(sess.Status()), "task": task,
	}))
}

func (s *Server) handleStop(c *client) {
	stopped := s.registry.StopActive()
	s.send(c, events.Event{
		Type:      events.KindStateChanged,
		Timestamp: time.Now(),
		Data:      map[string]any{"stopped": stopped},
	})
}

func (s *Server) handleScreenshot(c *client) {
	if s.screenshots == nil {
		s.sendError(c, "", "screenshots disabled")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry, err := s.screenshots.Capture(ctx)
	if err != nil {
		s.sendError(c, "", err.Error())
		return
	}
	s.send(c, events.New(events.KindScreenUpdated, "", map[string]any{
		"path": entry.Path, "timestamp": entry.Timestamp,
	}))
}

func (s *Server) handleStatus(c *client) {
	data := map[string]any{"running": false}
	if active := s.registry.Active(); active != nil {
		data["running"] = true
		data["task_id"] = active.ID
		data["task"] = active.Task
		data["status"] = string(active.Status())
	}
	s.send(c, events.New(events.KindProgressUpdate, "", data))
}

func (s *Server) handleConfig(c *client) {
	// never leak the credential over the channel
	data := map[string]any{
		"model":         s.cfg.Model.Name,
		"base_url":      s.cfg.Model.BaseURL,
		"device_serial": s.cfg.Device.Serial,
		"max_steps":     s.cfg.Agent.MaxSteps,
		"retry_budget":  s.cfg.Agent.RetryBudget,
	}
	s.send(c, events.New(events.KindProgressUpdate, "", data))
}

func (s *Server) send(c *client, e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("encode event")
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Warn().Str("client", c.id).Msg("dropping frame for slow client")
	}
}

func (s *Server) sendError(c *client, taskID, msg string) {
	s.send(c, events.New(events.KindError, taskID, map[string]any{"error": msg}))
}
