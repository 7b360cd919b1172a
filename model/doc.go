// Package model defines the provider-agnostic gateway contract for language
// model backends and the shared validation that runs before any provider call.
//
// Core goals:
//   - One Generate contract over heterogeneous providers (Anthropic, OpenAI,
//     Google GenAI) returning either a final answer or tool call requests
//   - Client-side enforcement of the tool call / tool result pairing rules
//     strict providers impose, before a request ever leaves the process
//   - Capability profiles describing per-provider schema restrictions, checked
//     fail-fast against declared tool specs
//   - A typed error taxonomy separating transient faults (retryable) from
//     protocol and schema faults (never retried)
//
// Provider adapters live in the subpackages model/anthropic, model/openai and
// model/google; higher layers depend only on the Gateway interface.
package model
