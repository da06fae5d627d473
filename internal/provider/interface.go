// Package provider defines the completion provider boundary consumed by the agents.
package provider

import (
	"context"
	"time"
)

// NameNone is the provider name reported when no completion backend is available.
// It is a normal response, not an error.
const NameNone = "none"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is the provider's reply. Content is free text that may or may not
// embed a JSON object.
type Response struct {
	Content  string        `json:"content"`
	Provider string        `json:"provider"`
	Model    string        `json:"model,omitempty"`
	Latency  time.Duration `json:"latency,omitempty"`
}

// Unavailable reports whether the response signals that no provider could serve the request.
func (r *Response) Unavailable() bool {
	return r == nil || r.Provider == NameNone
}

// Provider is a text chat interface.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (*Response, error)
}

// Func adapts a plain function to the Provider interface.
type Func func(ctx context.Context, messages []Message) (*Response, error)

// Chat calls f.
func (f Func) Chat(ctx context.Context, messages []Message) (*Response, error) {
	return f(ctx, messages)
}

// None always answers with the "none" provider signal.
type None struct{}

// Chat implements Provider.
func (None) Chat(context.Context, []Message) (*Response, error) {
	return &Response{Provider: NameNone}, nil
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }
