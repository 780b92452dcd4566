// Package agent runs the analytics conversation loop: it connects a chat
// model to the warehouse toolset and drives the question/tool/answer cycle
// under iteration and step budgets.
package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxalytics/voxalytics/pkg/models"
	"github.com/voxalytics/voxalytics/pkg/tools"
	"github.com/voxalytics/voxalytics/pkg/warehouse"
)

// ToolSource is the slice of the warehouse client the agent holds on to: it
// can invoke tools and be released.
type ToolSource interface {
	tools.WarehouseInvoker
	Close() error
}

// Connector establishes the warehouse session and lists its tools.
type Connector func(ctx context.Context) (ToolSource, []warehouse.ToolDefinition, error)

// ModelFactory builds the chat model for a provider/model pair.
type ModelFactory func(ctx context.Context, provider, model string) (models.ChatModel, error)

// RunLog is the audit view of one completed query.
type RunLog struct {
	SessionID string
	Question  string
	Answer    string
	Outcome   Outcome
	Warning   string
	ToolCount int
	Records   []ToolRecord
	Provider  string
	Model     string
	StartedAt time.Time
	Elapsed   time.Duration
}

// Recorder persists run logs. Implementations must tolerate concurrent calls.
type Recorder interface {
	Record(ctx context.Context, run RunLog) error
}

// Result is what ProcessQuery returns. Operational failures (budget, parse,
// tool errors) surface in Warning on a successful return, never as an error.
type Result struct {
	SessionID   string
	Answer      string
	ToolRecords []ToolRecord
	ToolCount   int
	Floored     bool
	Outcome     Outcome
	Warning     string
	Elapsed     time.Duration
}

// Options configure a new Agent. Connect is required unless Server is set;
// ModelFactory defaults to the standard provider factory.
type Options struct {
	Params       Params
	Server       warehouse.ServerConfig
	Connect      Connector
	Model        models.ChatModel
	ModelFactory ModelFactory
	Recorder     Recorder
	Logger       *slog.Logger
}

// Agent owns one warehouse connection and one model for its lifetime. It is
// safe for concurrent use; runs serialize nothing except the shared
// warehouse transport, which the client itself protects.
type Agent struct {
	mu          sync.Mutex
	params      Params
	connect     Connector
	factory     ModelFactory
	recorder    Recorder
	log         *slog.Logger
	model       models.ChatModel
	client      ToolSource
	registry    *tools.Registry
	initialized bool
}

// New builds an agent; no connection work happens until Initialize.
func New(opts Options) *Agent {
	connect := opts.Connect
	if connect == nil {
		server := opts.Server
		connect = func(ctx context.Context) (ToolSource, []warehouse.ToolDefinition, error) {
			client, err := warehouse.Dial(ctx, server)
			if err != nil {
				return nil, nil, err
			}
			defs, err := client.ListTools(ctx)
			if err != nil {
				client.Close()
				return nil, nil, err
			}
			return client, defs, nil
		}
	}

	factory := opts.ModelFactory
	if opts.Model != nil {
		model := opts.Model
		factory = func(context.Context, string, string) (models.ChatModel, error) {
			return model, nil
		}
	} else if factory == nil {
		factory = models.NewProvider
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		params:   opts.Params.withDefaults(),
		connect:  connect,
		factory:  factory,
		recorder: opts.Recorder,
		log:      logger,
	}
}

// Initialize builds the model and connects to the warehouse. It is
// idempotent: a second call on an initialized agent is a no-op. A partial
// failure releases anything already acquired.
func (a *Agent) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return nil
	}

	model, err := a.factory(ctx, a.params.Provider, a.params.Model)
	if err != nil {
		return fmt.Errorf("agent: building model: %w", err)
	}

	client, defs, err := a.connect(ctx)
	if err != nil {
		closeModel(model)
		return fmt.Errorf("agent: connecting warehouse: %w", err)
	}

	a.model = model
	a.client = client
	a.registry = tools.NewRegistry(tools.Bind(client, defs))
	a.initialized = true

	a.log.Info("agent initialized",
		"provider", a.params.Provider,
		"model", a.params.Model,
		"tools", a.registry.Len())
	return nil
}

// ProcessQuery runs one question to completion. It fails only for programmer
// error (uninitialized agent, empty query); every operational failure comes
// back inside the Result.
func (a *Agent) ProcessQuery(ctx context.Context, query string) (*Result, error) {
	return a.ProcessQueryWithHooks(ctx, query, RunHooks{})
}

// ProcessQueryWithHooks is ProcessQuery with per-event callbacks for
// front-ends that surface tool activity as it happens.
func (a *Agent) ProcessQueryWithHooks(ctx context.Context, query string, hooks RunHooks) (*Result, error) {
	a.mu.Lock()
	if !a.initialized {
		a.mu.Unlock()
		return nil, ErrNotInitialized
	}
	model, registry, params := a.model, a.registry, a.params
	a.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	sessionID := uuid.NewString()
	started := time.Now()

	run := runLoop(ctx, model, registry, params, query, hooks)
	red := Reduce(run.Transcript, run.Records)
	elapsed := time.Since(started)

	answer := red.FinalText
	if answer == "" {
		switch run.Outcome {
		case OutcomeBudgetExceeded:
			answer = fmt.Sprintf("I've reached the maximum number of steps (%d) while processing your request. The analysis may be incomplete. Please try rephrasing your question or breaking it into smaller parts.", params.StepLimit/2)
		default:
			answer = "I was unable to produce an answer for that question. Please try rephrasing it."
		}
	}

	result := &Result{
		SessionID:   sessionID,
		Answer:      answer,
		ToolRecords: red.ToolRecords,
		ToolCount:   red.ToolCount,
		Floored:     red.Floored,
		Outcome:     run.Outcome,
		Warning:     run.Warning,
		Elapsed:     elapsed,
	}

	a.log.Info("query processed",
		"session", sessionID,
		"outcome", string(run.Outcome),
		"tool_count", result.ToolCount,
		"elapsed", elapsed)

	if a.recorder != nil {
		log := RunLog{
			SessionID: sessionID,
			Question:  query,
			Answer:    result.Answer,
			Outcome:   run.Outcome,
			Warning:   run.Warning,
			ToolCount: result.ToolCount,
			Records:   red.ToolRecords,
			Provider:  params.Provider,
			Model:     params.Model,
			StartedAt: started,
			Elapsed:   elapsed,
		}
		if err := a.recorder.Record(ctx, log); err != nil {
			a.log.Warn("audit record failed", "session", sessionID, "error", err)
		}
	}
	return result, nil
}

// Cleanup releases the warehouse connection. Safe to call repeatedly and on
// a never-initialized agent.
func (a *Agent) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return nil
	}
	a.initialized = false

	var err error
	if a.client != nil {
		err = a.client.Close()
		a.client = nil
	}
	closeModel(a.model)
	a.model = nil
	a.registry = nil
	return err
}

// IsInitialized reports whether Initialize has completed.
func (a *Agent) IsInitialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

// Tools returns the descriptors of the bound toolset, or nil before
// initialization.
func (a *Agent) Tools() []tools.Descriptor {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.registry == nil {
		return nil
	}
	return a.registry.Descriptors()
}

// Params returns the effective configuration.
func (a *Agent) Params() Params {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.params
}

func closeModel(m models.ChatModel) {
	if closer, ok := m.(io.Closer); ok {
		_ = closer.Close()
	}
}
