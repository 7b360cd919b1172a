// Package runner orchestrates complete assistant turns. It wires the trigger
// engine, conversation builder, agent loop, memory store, and the hosting
// application's message store into a single RunTurn entry point, and
// serializes turns per conversation scope.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/parleyhq/parley/agent"
	"github.com/parleyhq/parley/conversation"
	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/memory"
	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/tool"
	"github.com/parleyhq/parley/trigger"
)

const (
	// DefaultAgentName labels the assistant in prompts and memory.
	DefaultAgentName = "Parley"

	// DefaultTurnBudget bounds wall-clock time for one full turn.
	DefaultTurnBudget = 30 * time.Second

	// DefaultHistoryLimit is how many stored messages are fetched per turn.
	DefaultHistoryLimit = 50
)

// Options configures a Runner.
type Options struct {
	AgentName    string
	TurnBudget   time.Duration
	HistoryLimit int

	// Memory is the encrypted per-user store. Nil disables cross-turn memory.
	Memory memory.Store

	// Trigger decides whether room messages get a response. Nil means a
	// default trigger.Engine.
	Trigger *trigger.Engine

	// Builder assembles prompts. Nil means a default conversation.Builder.
	Builder *conversation.Builder

	// Users resolves senders to display names for room prompts. Nil falls
	// back to raw user ids.
	Users core.UserDirectory

	// Loop overrides, passed through to agent.NewLoop.
	LoopOptions []func(o *agent.Options)

	Logger logging.Logger
}

// Runner is the top-level orchestrator. It is safe for concurrent use;
// turns within the same scope are serialized, different scopes proceed in
// parallel.
type Runner struct {
	loop      *agent.Loop
	messages  core.MessageStore
	memory    memory.Store
	trigger   *trigger.Engine
	builder   *conversation.Builder
	users     core.UserDirectory
	agentName string
	budget    time.Duration
	histLimit int
	logger    logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRunner wires a runner from its collaborators. The message store comes
// from the hosting application; gateway, registry, and executor form the
// reasoning side.
func NewRunner(gateway model.Gateway, registry *tool.Registry, executor *tool.Executor, messages core.MessageStore, optFns ...func(o *Options)) *Runner {
	opts := Options{
		AgentName:    DefaultAgentName,
		TurnBudget:   DefaultTurnBudget,
		HistoryLimit: DefaultHistoryLimit,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Trigger == nil {
		opts.Trigger = trigger.NewEngine()
	}
	if opts.Builder == nil {
		opts.Builder = conversation.NewBuilder()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.TurnBudget <= 0 {
		opts.TurnBudget = DefaultTurnBudget
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}

	loopOpts := append([]func(o *agent.Options){func(o *agent.Options) {
		o.Logger = opts.Logger
	}}, opts.LoopOptions...)

	return &Runner{
		loop:      agent.NewLoop(gateway, registry, executor, loopOpts...),
		messages:  messages,
		memory:    opts.Memory,
		trigger:   opts.Trigger,
		builder:   opts.Builder,
		users:     opts.Users,
		agentName: opts.AgentName,
		budget:    opts.TurnBudget,
		histLimit: opts.HistoryLimit,
		logger:    opts.Logger,
		locks:     map[string]*sync.Mutex{},
	}
}

// ShouldRespond evaluates the trigger rules for an incoming room message.
// Private threads always respond when the agent is enabled.
func (r *Runner) ShouldRespond(room core.RoomConfig, text string) trigger.Decision {
	if !room.IsRoom() {
		if !room.AgentEnabled {
			return trigger.Decision{ShouldRespond: false, Reason: trigger.ReasonDisabled}
		}
		return trigger.Decision{ShouldRespond: true, Reason: trigger.ReasonDirectThread}
	}
	return r.trigger.Decide(room, text)
}

// RunTurn runs one complete assistant turn for an already-saved incoming
// message. It returns the turn result after the assistant reply has been
// persisted. A cancelled caller context discards the turn: nothing is
// persisted and the context error is returned. Exceeding the turn budget
// instead aborts the loop and persists its degraded answer.
func (r *Runner) RunTurn(parent context.Context, room core.RoomConfig, scopeID, userID string, incoming core.Message) (result *agent.Result, err error) {
	lock := r.scopeLock(scopeID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(parent, r.budget)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("runner.turn.panic", "scope_id", scopeID, "panic", fmt.Sprint(rec))
			result = &agent.Result{
				State:  agent.StateAborted,
				Answer: agent.FallbackAnswer,
				Err:    fmt.Errorf("turn panicked: %v", rec),
			}
			err = nil
		}
	}()

	recalled := r.recall(ctx, userID)

	history, err := r.messages.RecentMessages(ctx, scopeID, r.histLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if !containsMessage(history, incoming.ID) {
		history = append(history, incoming)
	}

	var system string
	var contents []core.Content
	if room.IsRoom() {
		system, contents = r.builder.BuildRoom(r.agentName, r.participants(ctx, room), history)
	} else {
		// Private threads prepend recalled memory so the model sees prior
		// sessions before the live thread.
		system, contents = r.builder.BuildPrivate(r.agentName, append(recalled, history...))
	}

	res := r.loop.Run(ctx, system, contents)

	// Only the caller's own cancellation discards the turn; the budget
	// expiring still delivers whatever answer the loop settled on.
	if parent.Err() != nil {
		r.logger.Warn("runner.turn.discarded", "scope_id", scopeID, "cause", parent.Err().Error())
		return nil, parent.Err()
	}
	if ctx.Err() != nil {
		r.logger.Warn("runner.turn.budget_exceeded", "scope_id", scopeID, "budget", r.budget.String())
	}

	reply := core.NewAgentMessage(scopeID, res.Answer)
	saved, err := r.messages.SaveMessage(parent, scopeID, reply)
	if err != nil {
		return nil, fmt.Errorf("persisting reply: %w", err)
	}

	if r.memory != nil {
		if err := r.memory.AppendTurn(parent, userID, []core.Message{incoming, saved}); err != nil {
			// Memory is best effort; the reply is already delivered.
			r.logger.Error("runner.memory.append_failed", "user_id", userID, "error", err.Error())
		}
	}

	return res, nil
}

// recall loads the user's memory window. Access failures degrade to an empty
// recall rather than failing the turn.
func (r *Runner) recall(ctx context.Context, userID string) []core.Message {
	if r.memory == nil {
		return nil
	}
	recalled, err := r.memory.Recall(ctx, userID)
	if err != nil {
		var accessErr *memory.AccessError
		if errors.As(err, &accessErr) {
			r.logger.Warn("runner.memory.access_denied", "user_id", userID, "reason", accessErr.Reason)
		} else {
			r.logger.Error("runner.memory.recall_failed", "user_id", userID, "error", err.Error())
		}
		return nil
	}
	return recalled
}

// participants resolves room member ids to display metadata. Lookup failures
// degrade to the raw id.
func (r *Runner) participants(ctx context.Context, room core.RoomConfig) []core.Participant {
	participants := make([]core.Participant, 0, len(room.ParticipantIDs))
	for _, id := range room.ParticipantIDs {
		if r.users != nil {
			if p, err := r.users.User(ctx, id); err == nil {
				participants = append(participants, p)
				continue
			}
		}
		participants = append(participants, core.Participant{UserID: id, DisplayName: id})
	}
	return participants
}

// scopeLock returns the mutex guarding a conversation scope, creating it on
// first use.
func (r *Runner) scopeLock(scopeID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[scopeID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[scopeID] = lock
	}
	return lock
}

func containsMessage(history []core.Message, id string) bool {
	for _, m := range history {
		if m.ID == id {
			return true
		}
	}
	return false
}
