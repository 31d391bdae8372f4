package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lunef/agent-go/agent"
	"github.com/lunef/agent-go/logger"
)

// inboundMessage is one frame from the voice client. Only "utterance" is
// understood; the text is the transcript produced upstream by speech-to-text.
type inboundMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Text           string `json:"text,omitempty"`
}

// outboundMessage is the spoken reply frame sent back to the client.
type outboundMessage struct {
	Type     string                 `json:"type"`
	Response string                 `json:"response,omitempty"`
	Action   string                 `json:"action,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Voice clients connect from app webviews; restrict via ingress.
		return true
	},
}

// Server exposes the voice agent over WebSocket plus health and metrics
// endpoints.
type Server struct {
	sessions *agent.Manager
	log      logger.Logger
	srv      *http.Server
}

// NewServer builds the HTTP surface on the given listen address.
func NewServer(addr string, sessions *agent.Manager, log logger.Logger) *Server {
	if log == nil {
		log = logger.NoopLogger{}
	}
	s := &Server{sessions: sessions, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/voice", s.handleVoice)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for serving through a custom listener.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gateway listening", map[string]any{"addr": s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleVoice upgrades to WebSocket and relays utterance frames to the
// session layer. One connection carries one conversation at a time but frames
// are self-describing, so a reconnecting client resumes its session by
// sending the same conversation id.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	defer conn.Close()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.WriteJSON(outboundMessage{Type: "error", Error: "invalid message"})
			continue
		}

		switch strings.ToLower(msg.Type) {
		case "utterance":
			s.relayUtterance(r.Context(), conn, &msg)
		case "ping":
			_ = conn.WriteJSON(outboundMessage{Type: "pong"})
		default:
			_ = conn.WriteJSON(outboundMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

func (s *Server) relayUtterance(ctx context.Context, conn *websocket.Conn, msg *inboundMessage) {
	if msg.UserID == "" {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Error: "user_id is required"})
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Error: "empty utterance"})
		return
	}

	reply, err := s.sessions.HandleUtterance(ctx, msg.ConversationID, msg.UserID, msg.Text)
	if err != nil {
		s.log.Error("utterance handling failed", map[string]any{"user_id": msg.UserID, "error": err.Error()})
		_ = conn.WriteJSON(outboundMessage{Type: "error", Error: "internal error"})
		return
	}

	_ = conn.WriteJSON(outboundMessage{
		Type:     "reply",
		Response: reply.Response,
		Action:   string(reply.Action),
		Data:     reply.Data,
	})
}
