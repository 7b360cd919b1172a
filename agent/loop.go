package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/retry"
	"github.com/parleyhq/parley/tool"
)

// State identifies a phase of the turn state machine.
type State int

// Loop states. Aborted is reachable from any state.
const (
	StateAwaitingInput State = iota
	StateGenerating
	StateExecutingTools
	StateFinalized
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateGenerating:
		return "generating"
	case StateExecutingTools:
		return "executing_tools"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// TurnLimitExceededError reports that a turn hit the tool-calling round cap.
type TurnLimitExceededError struct {
	Rounds int
}

func (e *TurnLimitExceededError) Error() string {
	return fmt.Sprintf("turn exceeded %d tool-calling rounds", e.Rounds)
}

// FallbackAnswer is the degraded response used when nothing better can be
// synthesized for an aborted turn.
const FallbackAnswer = "Sorry, I wasn't able to finish working on that. Please try again."

// Result is the outcome of one turn. Answer is always populated: Finalized
// turns carry the model's final text, Aborted turns a degraded best-effort
// answer. Contents is the full in-flight context including tool traffic, in
// issue order.
type Result struct {
	State       State
	Answer      string
	Rounds      int
	Contents    []core.Content
	ToolResults []core.ToolResult
	Err         error // cause for Aborted turns, nil otherwise
}

// Degraded reports whether the answer was synthesized after an abort.
func (r *Result) Degraded() bool { return r.State == StateAborted }

// Options configures a Loop.
type Options struct {
	// MaxRounds caps the number of tool-calling rounds per turn.
	MaxRounds int
	// Retry configures backoff for transient gateway faults.
	Retry retry.Config
	Logger logging.Logger
}

// Loop owns the per-turn state machine. It is stateless across turns and
// safe for concurrent use; all turn state lives on the stack of Run.
type Loop struct {
	gateway   model.Gateway
	executor  *tool.Executor
	registry  *tool.Registry
	maxRounds int
	retryCfg  retry.Config
	logger    logging.Logger
}

// NewLoop constructs a Loop over a gateway and tool set.
// Defaults: 8 rounds, gateway retry policy per retry.DefaultConfig.
func NewLoop(gateway model.Gateway, registry *tool.Registry, executor *tool.Executor, optFns ...func(o *Options)) *Loop {
	opts := Options{
		MaxRounds: 8,
		Retry:     retry.DefaultConfig(),
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Loop{
		gateway:   gateway,
		executor:  executor,
		registry:  registry,
		maxRounds: opts.MaxRounds,
		retryCfg:  opts.Retry,
		logger:    opts.Logger,
	}
}

// Run drives one turn from the built context to a final or degraded answer.
// The returned Result is non-nil even on error paths.
func (l *Loop) Run(ctx context.Context, system string, contents []core.Content) *Result {
	res := &Result{State: StateAwaitingInput, Contents: contents}
	specs := l.registry.Specs()

	for round := 0; round < l.maxRounds; round++ {
		res.State = StateGenerating
		res.Rounds = round + 1

		turn, err := l.generate(ctx, system, res.Contents, specs)
		if err != nil {
			l.logger.Error("loop.generate.failed", "round", round+1, "error", err.Error())
			return l.abort(res, err)
		}

		if turn.IsFinal() {
			res.State = StateFinalized
			res.Answer = turn.Text
			res.Contents = append(res.Contents, core.NewTextContent(core.RoleAssistant, turn.Text))
			return res
		}

		res.State = StateExecutingTools
		l.logger.Debug("loop.tools.dispatch", "round", round+1, "calls", len(turn.ToolCalls))

		assistant := core.Content{Role: core.RoleAssistant}
		if turn.Text != "" {
			assistant.Parts = append(assistant.Parts, core.TextPart{Text: turn.Text})
		}
		for _, call := range turn.ToolCalls {
			assistant.Parts = append(assistant.Parts, core.ToolCallPart{ToolCall: call})
		}
		res.Contents = append(res.Contents, assistant)

		// Results come back in issue order regardless of completion order.
		results := l.executor.Execute(ctx, turn.ToolCalls)
		res.ToolResults = append(res.ToolResults, results...)

		toolContent := core.Content{Role: core.RoleTool}
		for _, result := range results {
			toolContent.Parts = append(toolContent.Parts, core.ToolResultPart{ToolResult: result})
		}
		res.Contents = append(res.Contents, toolContent)

		if ctx.Err() != nil {
			return l.abort(res, ctx.Err())
		}
	}

	return l.abort(res, &TurnLimitExceededError{Rounds: l.maxRounds})
}

// generate invokes the gateway with retry for transient faults only.
func (l *Loop) generate(ctx context.Context, system string, contents []core.Content, specs []model.ToolSpec) (*model.Turn, error) {
	info := l.gateway.Info()
	start := time.Now()
	turn, err := retry.Do(ctx, l.retryCfg, func() (*model.Turn, error) {
		return l.gateway.Generate(ctx, model.Request{
			System:   system,
			Contents: contents,
			Tools:    specs,
		})
	})
	if err != nil {
		logging.LogModelCall(l.logger, info.Provider, info.Name, 0, 0, time.Since(start), err)
		return nil, err
	}
	logging.LogModelCall(l.logger, info.Provider, info.Name,
		turn.Usage.PromptTokens, turn.Usage.CompletionTokens, time.Since(start), nil)
	return turn, nil
}

// abort finalizes a failed turn with a degraded answer synthesized from
// whatever tool results were gathered.
func (l *Loop) abort(res *Result, cause error) *Result {
	res.State = StateAborted
	res.Err = cause
	res.Answer = degradedAnswer(res.ToolResults)
	res.Contents = append(res.Contents, core.NewTextContent(core.RoleAssistant, res.Answer))
	return res
}

// degradedAnswer builds a best-effort reply from successful tool results, or
// falls back to a generic apology when there is nothing to work with.
func degradedAnswer(results []core.ToolResult) string {
	var found []string
	for _, r := range results {
		if r.Status == core.ToolStatusSuccess && r.Payload != "" {
			found = append(found, fmt.Sprintf("%s: %s", r.Name, r.Payload))
		}
	}
	if len(found) == 0 {
		return FallbackAnswer
	}
	return "I couldn't fully complete that, but here is what I found so far:\n" +
		strings.Join(found, "\n")
}
