// Package core defines the shared data model for Parley: the closed tagged
// union of conversation parts (text, tool calls, tool results), role-based
// content, persisted messages, room metadata and the narrow interfaces to
// external collaborators (message persistence, user directory).
//
// The Part union is deliberately exhaustive and survives the whole pipeline
// end-to-end; provider adapters perform total translations over it instead of
// flattening history into generic key/value maps.
package core
