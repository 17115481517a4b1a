package testsupport

import (
	"context"
	"encoding/json"
	"sync"
)

// CreateCall records one submission made through RecordingCreator.
type CreateCall struct {
	LocalID string
	Payload json.RawMessage
}

// RecordingCreator is a create-record collaborator that logs calls in order
// and returns scripted errors per local ID.
type RecordingCreator struct {
	mu       sync.Mutex
	calls    []CreateCall
	failures map[string]error
	gate     chan struct{}
	entered  chan string
}

// NewRecordingCreator returns a creator that accepts every submission.
func NewRecordingCreator() *RecordingCreator {
	return &RecordingCreator{failures: make(map[string]error)}
}

// FailFor makes submissions of localID return err until cleared with a nil err.
func (c *RecordingCreator) FailFor(localID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, localID)
		return
	}
	c.failures[localID] = err
}

// Block holds every Create call until the returned release func is called.
// Each blocked call first announces its local ID on entered.
func (c *RecordingCreator) Block() (entered <-chan string, release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
	c.entered = make(chan string, 64)
	gate := c.gate
	var once sync.Once
	return c.entered, func() { once.Do(func() { close(gate) }) }
}

// Create records the call and returns the scripted outcome.
func (c *RecordingCreator) Create(ctx context.Context, localID string, payload json.RawMessage) error {
	c.mu.Lock()
	c.calls = append(c.calls, CreateCall{LocalID: localID, Payload: append(json.RawMessage(nil), payload...)})
	err := c.failures[localID]
	gate, entered := c.gate, c.entered
	c.mu.Unlock()

	if gate != nil {
		select {
		case entered <- localID:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Calls returns the submitted local IDs in call order.
func (c *RecordingCreator) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(c.calls))
	for i, call := range c.calls {
		ids[i] = call.LocalID
	}
	return ids
}

// Payloads returns the submitted payloads in call order.
func (c *RecordingCreator) Payloads() []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]json.RawMessage, len(c.calls))
	for i, call := range c.calls {
		out[i] = call.Payload
	}
	return out
}
