// Package parley provides a high-level façade over the assistant engine:
// the provider gateway, tool registry and executor, trigger engine, context
// builder, encrypted memory, and the per-scope turn runner. Most applications
// interact with this package by:
//  1. Creating a Parley via New() with a model.Gateway
//  2. Registering tools (RegisterTool)
//  3. Feeding incoming messages through ShouldRespond and RunTurn
//
// The façade delegates orchestration to runner.Runner while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a SQLite-backed memory
// store, a durable message store, and a structured logger.
package parley

import (
	"context"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/parleyhq/parley/agent"
	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/conversation"
	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/memory"
	"github.com/parleyhq/parley/memory/sqlite"
	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/model/anthropic"
	"github.com/parleyhq/parley/model/google"
	"github.com/parleyhq/parley/model/openai"
	"github.com/parleyhq/parley/runner"
	"github.com/parleyhq/parley/tool"
	"github.com/parleyhq/parley/trigger"
)

// Options configures the Parley instance.
type Options struct {
	// AgentName labels the assistant in prompts and persisted messages.
	AgentName string

	// TurnBudget bounds wall-clock time for one full turn.
	TurnBudget time.Duration

	// MaxRounds caps tool-calling rounds per turn.
	MaxRounds int

	// ContextWindow bounds how many history messages reach the model.
	ContextWindow int

	// ToolTimeout bounds each individual tool call.
	ToolTimeout time.Duration

	// Memory overrides the default in-memory encrypted store.
	Memory memory.Store

	// Trigger overrides the default room response rules.
	Trigger *trigger.Engine

	// Users resolves sender ids to display names for room prompts.
	Users core.UserDirectory

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Parley is the high-level façade aggregating the runner and its services.
type Parley struct {
	opts     Options
	registry *tool.Registry
	runner   *runner.Runner
}

// New creates a Parley instance over a provider gateway and the hosting
// application's message store. Any unset service is initialized with an
// in-memory implementation.
func New(gateway model.Gateway, messages core.MessageStore, optFns ...func(o *Options)) *Parley {
	opts := Options{
		AgentName:     runner.DefaultAgentName,
		TurnBudget:    runner.DefaultTurnBudget,
		MaxRounds:     8,
		ContextWindow: conversation.DefaultWindow,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry := tool.NewRegistry(opts.Logger)
	executor := tool.NewExecutor(registry, func(o *tool.ExecutorOptions) {
		o.Logger = opts.Logger
		if opts.ToolTimeout > 0 {
			o.Timeout = opts.ToolTimeout
		}
	})

	run := runner.NewRunner(gateway, registry, executor, messages, func(o *runner.Options) {
		o.AgentName = opts.AgentName
		o.TurnBudget = opts.TurnBudget
		o.Memory = opts.Memory
		o.Trigger = opts.Trigger
		o.Users = opts.Users
		o.Logger = opts.Logger
		o.Builder = conversation.NewBuilder(func(bo *conversation.Options) {
			bo.Window = opts.ContextWindow
		})
		o.LoopOptions = []func(lo *agent.Options){func(lo *agent.Options) {
			lo.MaxRounds = opts.MaxRounds
		}}
	})

	return &Parley{opts: opts, registry: registry, runner: run}
}

// NewFromConfig builds a Parley from a loaded configuration: provider
// selection, trigger cues, memory backend, and turn limits. The context is
// used only for provider client construction. Later option functions still
// win, so callers can override individual settings.
func NewFromConfig(ctx context.Context, cfg config.Config, messages core.MessageStore, optFns ...func(o *Options)) (*Parley, error) {
	gateway, err := gatewayFromConfig(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}

	var store memory.Store
	if cfg.Memory.Path != "" {
		s, err := sqlite.Open(cfg.Memory.Path, func(o *sqlite.Options) { o.Limit = cfg.Memory.Limit })
		if err != nil {
			return nil, fmt.Errorf("opening memory store: %w", err)
		}
		store = s
	} else {
		store = memory.NewInMemoryStore(func(o *memory.InMemoryOptions) { o.Limit = cfg.Memory.Limit })
	}

	setup := append([]func(o *Options){func(o *Options) {
		o.AgentName = cfg.AgentName
		o.TurnBudget = cfg.Turn.Budget
		o.MaxRounds = cfg.Turn.MaxRounds
		o.ContextWindow = cfg.Turn.ContextWindow
		o.ToolTimeout = cfg.Turn.ToolTimeout
		o.Memory = store
		o.Trigger = triggerFromConfig(cfg.Trigger)
	}}, optFns...)

	return New(gateway, messages, setup...), nil
}

// triggerFromConfig maps trigger settings onto an engine. Empty cue lists
// keep the engine defaults.
func triggerFromConfig(tc config.TriggerConfig) *trigger.Engine {
	return trigger.NewEngine(func(o *trigger.Options) {
		if len(tc.MentionTokens) > 0 {
			o.MentionTokens = tc.MentionTokens
		}
		if len(tc.HelpKeywords) > 0 {
			o.HelpKeywords = tc.HelpKeywords
		}
		if len(tc.LanguageCues) > 0 {
			o.LanguageCues = tc.LanguageCues
		}
		if len(tc.EmpathyCues) > 0 {
			o.EmpathyCues = tc.EmpathyCues
		}
		o.QuestionProbability = tc.QuestionProbability
		o.QuestionMinLength = tc.QuestionMinLength
	})
}

// gatewayFromConfig constructs the provider adapter named by the config.
func gatewayFromConfig(ctx context.Context, mc config.ModelConfig) (model.Gateway, error) {
	switch mc.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			if mc.Temperature > 0 {
				o.Temperature = mc.Temperature
			}
			if mc.MaxTokens > 0 {
				o.MaxTokens = int64(mc.MaxTokens)
			}
			o.APIKey = mc.APIKey
		}), nil
	case config.ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			if mc.Temperature > 0 {
				o.Temperature = mc.Temperature
			}
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(mc.MaxTokens)
			}
			o.APIKey = mc.APIKey
		}), nil
	case config.ProviderGoogle:
		return google.New(ctx, mc.APIKey, func(o *google.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			if mc.Temperature > 0 {
				o.Temperature = mc.Temperature
			}
			if mc.MaxTokens > 0 {
				o.MaxTokens = int32(mc.MaxTokens)
			}
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

// RegisterTool adds a tool to the underlying registry.
func (p *Parley) RegisterTool(t tool.Tool) { p.registry.Register(t) }

// ShouldRespond evaluates whether the assistant should answer an incoming
// message. It is pure and synchronous.
func (p *Parley) ShouldRespond(room core.RoomConfig, text string) trigger.Decision {
	return p.runner.ShouldRespond(room, text)
}

// RunTurn runs one complete assistant turn and returns the final or degraded
// answer. Callers never see intermediate tool-calling state.
func (p *Parley) RunTurn(ctx context.Context, room core.RoomConfig, scopeID, userID string, incoming core.Message) (*agent.Result, error) {
	return p.runner.RunTurn(ctx, room, scopeID, userID, incoming)
}
