package model

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/core"
)

// MockGateway is a lightweight in-memory Gateway useful for tests & examples.
// Canned turns and errors share one FIFO queue, so enqueue order is response
// order; with nothing queued it echoes the last user text.
type MockGateway struct {
	info   Info
	queue  []mockResponse
	called int
}

type mockResponse struct {
	turn *Turn
	err  error
}

// NewMockGateway constructs a MockGateway.
func NewMockGateway(name string) *MockGateway {
	return &MockGateway{info: Info{Name: name, Provider: "mock"}}
}

// EnqueueTurn registers a canned turn returned by the next Generate call.
func (m *MockGateway) EnqueueTurn(t *Turn) { m.queue = append(m.queue, mockResponse{turn: t}) }

// EnqueueError registers an error returned by the next Generate call.
func (m *MockGateway) EnqueueError(err error) { m.queue = append(m.queue, mockResponse{err: err}) }

// Calls returns the number of Generate invocations observed.
func (m *MockGateway) Calls() int { return m.called }

// Generate implements Gateway. Pairing and spec validation run exactly as in
// real adapters so tests exercise the same failure paths.
func (m *MockGateway) Generate(_ context.Context, req Request) (*Turn, error) {
	if err := Prepare(req, Capability{Provider: "mock"}); err != nil {
		return nil, err
	}
	m.called++

	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next.turn, next.err
	}

	var lastUser string
	for _, c := range req.Contents {
		if c.Role == core.RoleUser {
			lastUser = c.Text()
		}
	}
	return &Turn{Text: fmt.Sprintf("Mock response to: %s", lastUser), FinishReason: "stop"}, nil
}

// Info implements Gateway.
func (m *MockGateway) Info() Info { return m.info }
