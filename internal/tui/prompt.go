// Package tui holds the small interactive prompts used by the CLI.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// Prompt represents a simple interactive prompt configuration
type Prompt struct {
	Message     string
	Default     string
	Placeholder string
	Required    bool
}

// PromptForString displays an interactive prompt and returns the trimmed input.
func PromptForString(ctx context.Context, p Prompt) (string, error) {
	value := p.Default

	input := huh.NewInput().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Value(&value)
	if p.Required {
		input = input.Validate(requireValue)
	}

	if err := huh.NewForm(huh.NewGroup(input)).RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	value = strings.TrimSpace(value)
	if err := checkRequired(p, value); err != nil {
		return "", err
	}
	return value, nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(ctx context.Context, message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

func requireValue(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("a value is required")
	}
	return nil
}

func checkRequired(p Prompt, value string) error {
	if p.Required && value == "" {
		return fmt.Errorf("%s: value is required", strings.TrimSuffix(p.Message, ":"))
	}
	return nil
}
