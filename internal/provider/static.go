package provider

import (
	"context"
	"sync"
)

// Static replays scripted replies in order, repeating the last one once the
// script is exhausted. Every request is recorded for inspection.
type Static struct {
	mu       sync.Mutex
	name     string
	replies  []string
	err      error
	calls    int
	requests [][]Message
}

// NewStatic creates a scripted provider named name.
func NewStatic(name string, replies ...string) *Static {
	return &Static{name: name, replies: replies}
}

// WithError makes every call fail with err.
func (s *Static) WithError(err error) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Chat implements Provider.
func (s *Static) Chat(ctx context.Context, messages []Message) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, append([]Message(nil), messages...))
	s.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return &Response{Provider: NameNone}, nil
	}

	idx := s.calls - 1
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return &Response{Content: s.replies[idx], Provider: s.name}, nil
}

// Calls returns how many times Chat was invoked.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Requests returns a copy of every message list received.
func (s *Static) Requests() [][]Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Message, len(s.requests))
	copy(out, s.requests)
	return out
}
