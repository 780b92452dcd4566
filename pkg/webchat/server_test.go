package webchat

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/voxalytics/voxalytics/pkg/agent"
	"github.com/voxalytics/voxalytics/pkg/models"
	"github.com/voxalytics/voxalytics/pkg/warehouse"
)

type stubSource struct{}

func (stubSource) CallTool(_ context.Context, name string, _ map[string]any) (warehouse.CallResult, error) {
	return warehouse.CallResult{Content: []warehouse.Content{{Type: "text", Text: "ok from " + name}}}, nil
}

func (stubSource) Close() error { return nil }

func newChatAgent(t *testing.T, steps ...models.ScriptedStep) *agent.Agent {
	t.Helper()
	a := agent.New(agent.Options{
		Model: models.NewScriptedModel(steps...),
		Connect: func(context.Context) (agent.ToolSource, []warehouse.ToolDefinition, error) {
			return stubSource{}, []warehouse.ToolDefinition{{Name: "read_query"}}, nil
		},
		Logger: slog.New(slog.DiscardHandler),
	})
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return a
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestQueryAnswerRoundTrip(t *testing.T) {
	ag := newChatAgent(t,
		models.ToolStep("c1", "read_query", map[string]any{}),
		models.TextStep("There are 7 distinct classes."),
	)
	srv := httptest.NewServer(NewServer(ag, nil, slog.New(slog.DiscardHandler)).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if err := conn.WriteJSON(Frame{Type: "query", Text: "how many classes?"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var types []string
	var answer Frame
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		types = append(types, frame.Type)
		if frame.Type == "answer" {
			answer = frame
			break
		}
	}

	want := []string{"tool_call", "tool_result", "answer"}
	if len(types) != len(want) {
		t.Fatalf("unexpected frame sequence: %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("frame %d: got %s, want %s", i, types[i], want[i])
		}
	}
	if answer.Text != "There are 7 distinct classes." || answer.ToolCount != 1 {
		t.Fatalf("unexpected answer frame: %+v", answer)
	}
	if answer.SessionID == "" {
		t.Fatal("answer frame missing session id")
	}
}

func TestNonQueryFrameRejected(t *testing.T) {
	ag := newChatAgent(t, models.TextStep("unused"))
	srv := httptest.NewServer(NewServer(ag, nil, slog.New(slog.DiscardHandler)).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if err := conn.WriteJSON(Frame{Type: "ping"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if frame.Type != "error" {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}

func TestDirectStreamMode(t *testing.T) {
	ag := newChatAgent(t, models.TextStep("unused"))
	direct := models.NewScriptedModel(models.TextStep("streamed answer"))
	srv := httptest.NewServer(NewServer(ag, direct, slog.New(slog.DiscardHandler)).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if err := conn.WriteJSON(Frame{Type: "stream", Text: "hello"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var deltas string
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if frame.Type == "delta" {
			deltas += frame.Text
			continue
		}
		if frame.Type == "answer" {
			if frame.Text != "streamed answer" || deltas != "streamed answer" {
				t.Fatalf("unexpected stream: answer=%q deltas=%q", frame.Text, deltas)
			}
			return
		}
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestStreamRejectedWithoutDirectModel(t *testing.T) {
	ag := newChatAgent(t, models.TextStep("unused"))
	srv := httptest.NewServer(NewServer(ag, nil, slog.New(slog.DiscardHandler)).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if err := conn.WriteJSON(Frame{Type: "stream", Text: "hello"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if frame.Type != "error" {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Fatalf("unexpected clip: %q", got)
	}
	if got := clip("0123456789abc", 10); !strings.HasPrefix(got, "0123456789") || len(got) <= 10 {
		t.Fatalf("unexpected clip: %q", got)
	}
}
