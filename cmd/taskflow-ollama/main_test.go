package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskflow/internal/provider"
)

func TestRun(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"{\"steps\":[]}"},"done":true}`))
	}))
	defer srv.Close()

	c := &client{host: srv.URL + "/", model: "llama3.2", maxTokens: 64}
	in := strings.NewReader(`{"messages":[{"role":"system","content":"plan"},{"role":"user","content":"read a.txt"}]}`)
	var out bytes.Buffer
	require.NoError(t, c.run(context.Background(), in, &out))

	assert.Equal(t, "llama3.2", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, provider.RoleSystem, got.Messages[0].Role)
	require.NotNil(t, got.Options)
	assert.Equal(t, 64, got.Options.NumPredict)

	var resp provider.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, `{"steps":[]}`, resp.Content)
	assert.Equal(t, "ollama", resp.Provider)
}

func TestRunServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"x\" not found"}`))
	}))
	defer srv.Close()

	c := &client{host: srv.URL, model: "x"}
	err := c.run(context.Background(), strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "not found")
}

func TestRunRejectsEmptyRequest(t *testing.T) {
	c := &client{model: "x"}
	assert.Error(t, c.run(context.Background(), strings.NewReader(`{"messages":[]}`), &bytes.Buffer{}))
	assert.Error(t, c.run(context.Background(), strings.NewReader(`not json`), &bytes.Buffer{}))
}
