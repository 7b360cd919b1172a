// Package agent drives the generate → tool-call → regenerate cycle for one
// turn. The Loop is a small state machine (AwaitingInput, Generating,
// ExecutingTools, Finalized, Aborted) with a hard cap on tool-calling rounds;
// an aborted turn still produces a best-effort degraded answer so a user
// message is never left unanswered.
package agent
