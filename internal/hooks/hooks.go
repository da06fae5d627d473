// Package hooks runs user-configured commands on pipeline lifecycle events.
package hooks

import (
	"context"
	"fmt"
	"time"
)

// EventType represents the type of lifecycle event
type EventType string

const (
	EventPipelineStart    EventType = "on_pipeline_start"
	EventPipelineComplete EventType = "on_pipeline_complete"
	EventPipelineFailed   EventType = "on_pipeline_failed"

	EventPlanCreated  EventType = "on_plan_created"
	EventPlanApproved EventType = "on_plan_approved"
	EventPlanRejected EventType = "on_plan_rejected"

	EventApplyComplete   EventType = "on_apply_complete"
	EventApplyRolledBack EventType = "on_apply_rolled_back"
)

var knownEvents = map[EventType]bool{
	EventPipelineStart:    true,
	EventPipelineComplete: true,
	EventPipelineFailed:   true,
	EventPlanCreated:      true,
	EventPlanApproved:     true,
	EventPlanRejected:     true,
	EventApplyComplete:    true,
	EventApplyRolledBack:  true,
}

// Event is a lifecycle event delivered to hooks.
type Event struct {
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	TaskID    string            `json:"taskId"`
	Data      map[string]string `json:"data,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, taskID string, data map[string]string) *Event {
	return &Event{Type: eventType, Timestamp: time.Now(), TaskID: taskID, Data: data}
}

// Hook handles lifecycle events.
type Hook interface {
	Name() string
	EventTypes() []EventType
	Execute(ctx context.Context, event *Event) error
}

// Config describes a script hook in the configuration file.
type Config struct {
	Name    string        `koanf:"name" yaml:"name"`
	Events  []string      `koanf:"events" yaml:"events"`
	Command string        `koanf:"command" yaml:"command"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout,omitempty"`
}

// Validate checks the hook configuration.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("hook name is required")
	}
	if c.Command == "" {
		return fmt.Errorf("hook %s: command is required", c.Name)
	}
	if len(c.Events) == 0 {
		return fmt.Errorf("hook %s: at least one event is required", c.Name)
	}
	for _, e := range c.Events {
		if !knownEvents[EventType(e)] {
			return fmt.Errorf("hook %s: unknown event %q", c.Name, e)
		}
	}
	return nil
}

// ExecutionResult contains the result of hook execution
type ExecutionResult struct {
	HookName  string        `json:"hookName"`
	EventType EventType     `json:"eventType"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second
