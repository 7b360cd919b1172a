package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/internal/schema"
	"github.com/parleyhq/parley/logging"
)

// ExecutorOptions configures the Executor.
type ExecutorOptions struct {
	// Timeout bounds each individual tool call. Expiry yields an
	// error-status result, never a hung turn.
	Timeout time.Duration
	// MaxParallel limits concurrent calls within one batch. 0 means
	// unbounded (the batch size).
	MaxParallel int
	Logger      logging.Logger
}

// Executor runs a batch of model-requested tool calls. Calls within one turn
// are independent and read-mostly, so the batch runs concurrently; results
// are always returned in issue order regardless of completion order, and any
// failure (validation, execution error, panic, timeout, unknown tool) becomes
// an error-status result rather than aborting the batch.
//
// The batch runs on a context detached from caller cancellation: once a tool
// is in flight it is allowed to finish so side effects are never orphaned.
// The per-call timeout still bounds every execution.
type Executor struct {
	registry    *Registry
	timeout     time.Duration
	maxParallel int
	logger      logging.Logger
}

// NewExecutor constructs an Executor over the given registry.
// Defaults: 15s per-call timeout, unbounded parallelism, no logging.
func NewExecutor(registry *Registry, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Timeout: 15 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Executor{
		registry:    registry,
		timeout:     opts.Timeout,
		maxParallel: opts.MaxParallel,
		logger:      opts.Logger,
	}
}

// Execute runs all calls and gathers their results in issue order.
func (e *Executor) Execute(ctx context.Context, calls []core.ToolCall) []core.ToolResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	// In-flight tools finish even if the turn is cancelled.
	execCtx := context.WithoutCancel(ctx)

	results := make([]core.ToolResult, n)

	if n == 1 {
		results[0] = e.executeOne(execCtx, calls[0])
		return results
	}

	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}
	for i := range calls {
		g.Go(func() error {
			results[i] = e.executeOne(execCtx, calls[i])
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results

	return results
}

// executeOne runs a single call under the per-call timeout with panic safety.
func (e *Executor) executeOne(ctx context.Context, call core.ToolCall) core.ToolResult {
	impl, ok := e.registry.Get(call.Name)
	if !ok {
		e.logger.Warn("tool.unknown", "tool", call.Name, "call_id", call.ID)
		return core.NewToolErrorResult(call, NewToolError(call.Name, "tool not registered", CodeUnknown).Error())
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			detail := NewToolError(call.Name, fmt.Sprintf("malformed arguments: %v", err), CodeValidation)
			return core.NewToolErrorResult(call, detail.Error())
		}
	}

	// Validation failures never invoke the tool body.
	if err := schema.Validate(args, impl.Parameters()); err != nil {
		detail := NewToolError(call.Name, fmt.Sprintf("parameter validation failed: %v", err), CodeValidation)
		return core.NewToolErrorResult(call, detail.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("tool.panic", "tool", call.Name, "call_id", call.ID,
					"recover", fmt.Sprint(r), "stack", string(debug.Stack()))
				done <- outcome{err: NewToolError(call.Name, fmt.Sprintf("panic: %v", r), CodeExecution)}
			}
		}()
		value, err := impl.Call(callCtx, args)
		done <- outcome{value: value, err: err}
	}()

	select {
	case <-callCtx.Done():
		logging.LogToolCall(e.logger, call.Name, call.ID, time.Since(start), callCtx.Err())
		detail := NewToolError(call.Name, fmt.Sprintf("execution exceeded %s", e.timeout), CodeTimeout)
		return core.NewToolErrorResult(call, detail.Error())
	case out := <-done:
		logging.LogToolCall(e.logger, call.Name, call.ID, time.Since(start), out.err)
		if out.err != nil {
			return core.NewToolErrorResult(call, out.err.Error())
		}
		return core.NewToolResult(call, marshalPayload(out.value))
	}
}

// marshalPayload renders a tool return value for the model.
func marshalPayload(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}
