// Package webchat serves a browser chat over WebSocket. Each connection is a
// session; questions go to the shared agent and tool activity streams back as
// it happens.
package webchat

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/voxalytics/voxalytics/pkg/agent"
	"github.com/voxalytics/voxalytics/pkg/models"
)

//go:embed index.html
var indexPage []byte

// Frame is one JSON message on the socket, in either direction. Inbound
// types are "query" (full agent run) and "stream" (direct model chat, no
// tools); outbound types are "tool_call", "tool_result", "delta", "answer"
// and "error".
type Frame struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	ToolCount int            `json:"tool_count,omitempty"`
	Warning   string         `json:"warning,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// Server handles the chat page and the /ws endpoint.
type Server struct {
	agent    *agent.Agent
	direct   models.ChatModel
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer builds the chat server. direct may be nil; without it "stream"
// frames are rejected.
func NewServer(ag *agent.Agent, direct models.ChatModel, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		agent:  ag,
		direct: direct,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The chat page may be served from a different origin in
			// development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP mux for the chat surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexPage)
	})
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe runs the chat server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("webchat: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	})
	return g.Wait()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("webchat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Concurrent hook callbacks and the final answer share the socket.
	var writeMu sync.Mutex
	send := func(f Frame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(f); err != nil {
			s.log.Warn("webchat: write failed", "error", err)
		}
	}

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("webchat: read failed", "error", err)
			}
			return
		}
		switch frame.Type {
		case "query":
			s.handleQuery(r.Context(), frame.Text, send)
		case "stream":
			s.handleStream(r.Context(), frame.Text, send)
		default:
			send(Frame{Type: "error", Text: "expected a query or stream frame"})
		}
	}
}

// handleStream chats with the model directly, no tools, relaying fragments
// as they arrive.
func (s *Server) handleStream(ctx context.Context, text string, send func(Frame)) {
	if s.direct == nil {
		send(Frame{Type: "error", Text: "direct streaming is not enabled"})
		return
	}

	ch, err := s.direct.CompleteStream(ctx, agent.SystemDirective(),
		[]models.Message{{Role: models.RoleUser, Content: text}}, nil,
		models.GenerationConfig{Temperature: agent.DefaultTemperature, MaxTokens: agent.DefaultMaxTokens})
	if err != nil {
		send(Frame{Type: "error", Text: err.Error()})
		return
	}

	for chunk := range ch {
		if chunk.Err != nil {
			send(Frame{Type: "error", Text: chunk.Err.Error()})
			return
		}
		if chunk.Delta != "" {
			send(Frame{Type: "delta", Text: chunk.Delta})
		}
		if chunk.Done {
			send(Frame{Type: "answer", Text: chunk.FullText})
		}
	}
}

func (s *Server) handleQuery(ctx context.Context, text string, send func(Frame)) {
	hooks := agent.RunHooks{
		OnToolCall: func(name string, args map[string]any) {
			send(Frame{Type: "tool_call", Tool: name, Args: args})
		},
		OnToolResult: func(name, output string) {
			send(Frame{Type: "tool_result", Tool: name, Text: clip(output, 2000)})
		},
	}

	result, err := s.agent.ProcessQueryWithHooks(ctx, text, hooks)
	if err != nil {
		send(Frame{Type: "error", Text: err.Error()})
		return
	}
	send(Frame{
		Type:      "answer",
		Text:      result.Answer,
		ToolCount: result.ToolCount,
		Warning:   result.Warning,
		SessionID: result.SessionID,
	})
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
