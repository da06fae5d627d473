package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoneSignalsUnavailable(t *testing.T) {
	resp, err := None{}.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, resp.Unavailable())
}

func TestStaticReplaysScript(t *testing.T) {
	p := NewStatic("mock", "first", "second")
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		resp, err := p.Chat(ctx, []Message{User("hi")})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content)
		assert.Equal(t, "mock", resp.Provider)
	}
	assert.Equal(t, 3, p.Calls())
	assert.Len(t, p.Requests(), 3)
}

func TestStaticEmptyScriptIsUnavailable(t *testing.T) {
	resp, err := NewStatic("mock").Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, resp.Unavailable())
}

func TestStaticError(t *testing.T) {
	p := NewStatic("mock", "x").WithError(fmt.Errorf("rate limited"))
	_, err := p.Chat(context.Background(), nil)
	assert.EqualError(t, err, "rate limited")
}

func TestFuncAdapter(t *testing.T) {
	var p Provider = Func(func(_ context.Context, msgs []Message) (*Response, error) {
		return &Response{Content: msgs[len(msgs)-1].Content, Provider: "echo"}, nil
	})
	resp, err := p.Chat(context.Background(), []Message{System("s"), User("u")})
	require.NoError(t, err)
	assert.Equal(t, "u", resp.Content)
}

func TestParseReply(t *testing.T) {
	resp := parseReply([]byte(`{"content":"hello","provider":"fake"}`))
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "fake", resp.Provider)

	resp = parseReply([]byte("  plain text reply \n"))
	assert.Equal(t, "plain text reply", resp.Content)
	assert.Empty(t, resp.Provider)

	resp = parseReply([]byte(`{"steps":[]}`))
	assert.Equal(t, `{"steps":[]}`, resp.Content, "non-envelope JSON is treated as content")
}

func TestExecutableProvider(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script provider requires a POSIX shell")
	}

	script := filepath.Join(t.TempDir(), "provider.sh")
	body := "#!/bin/sh\ncat > /dev/null\necho '{\"content\":\"ok\",\"provider\":\"script\"}'\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	p, err := NewExecutableProvider(script, nil, 5*time.Second)
	require.NoError(t, err)

	resp, err := p.Chat(context.Background(), []Message{User("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "script", resp.Provider)
}

func TestExecutableProviderMissing(t *testing.T) {
	_, err := NewExecutableProvider("definitely-not-a-real-binary-xyz", nil, 0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "PROVIDER-001"))
}
