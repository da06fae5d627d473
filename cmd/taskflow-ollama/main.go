// Command taskflow-ollama is a completion provider for taskflow backed by a
// local Ollama server. It reads {"messages": [...]} on stdin and writes a
// provider response as JSON on stdout.
//
// Configure it with:
//
//	provider:
//	  command: taskflow-ollama
//	  args: ["--model", "llama3.2"]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskflow/internal/provider"
)

const defaultHost = "http://localhost:11434"

type chatRequest struct {
	Messages []provider.Message `json:"messages"`
}

// ollamaChatRequest is the body of POST /api/chat.
type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []provider.Message `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  *ollamaOptions     `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string           `json:"model"`
	Message provider.Message `json:"message"`
	Done    bool             `json:"done"`
	Error   string           `json:"error,omitempty"`
}

type client struct {
	host        string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
}

func main() {
	var c client
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "taskflow-ollama",
		Short:         "Ollama completion provider for taskflow",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.host == "" {
				c.host = os.Getenv("OLLAMA_HOST")
			}
			c.http = &http.Client{Timeout: timeout}
			return c.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.Flags().StringVar(&c.model, "model", "llama3.2", "model name")
	root.Flags().StringVar(&c.host, "host", "", "Ollama base URL (default $OLLAMA_HOST or "+defaultHost+")")
	root.Flags().Float64Var(&c.temperature, "temperature", 0, "sampling temperature (0 uses the model default)")
	root.Flags().IntVar(&c.maxTokens, "max-tokens", 0, "maximum tokens to generate (0 uses the model default)")
	root.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *client) run(ctx context.Context, in io.Reader, out io.Writer) error {
	var req chatRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("request has no messages")
	}

	start := time.Now()
	reply, err := c.chat(ctx, req.Messages)
	if err != nil {
		return err
	}

	return json.NewEncoder(out).Encode(provider.Response{
		Content:  reply.Message.Content,
		Provider: "ollama",
		Model:    reply.Model,
		Latency:  time.Since(start),
	})
}

func (c *client) chat(ctx context.Context, messages []provider.Message) (*ollamaChatResponse, error) {
	body := ollamaChatRequest{Model: c.model, Messages: messages}
	if c.temperature > 0 || c.maxTokens > 0 {
		body.Options = &ollamaOptions{Temperature: c.temperature, NumPredict: c.maxTokens}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	host := strings.TrimRight(c.host, "/")
	if host == "" {
		host = defaultHost
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	hc := c.http
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama API call failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read ollama response: %w", err)
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ollama response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, out.Error)
	}
	return &out, nil
}
