package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, <-chan string) {
	t.Helper()

	receivedPrompt := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var request map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		receivedPrompt <- request["prompt"]

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server, receivedPrompt
}

func TestRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("prompt from arguments", func(t *testing.T) {
		t.Parallel()

		server, receivedPrompt := newServer(t, http.StatusOK, `{"response":"The answer is 42."}`)
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

		code := run(ctx, []string{"-server", server.URL + "/", "what", "is", "it?"}, strings.NewReader(""), stdout, stderr)

		require.Equal(t, 0, code, stderr.String())
		require.Equal(t, "what is it?", <-receivedPrompt)
		require.Equal(t, "The answer is 42.\n", stdout.String())
	})

	t.Run("prompt from stdin", func(t *testing.T) {
		t.Parallel()

		server, receivedPrompt := newServer(t, http.StatusOK, `{"response":"ok"}`)
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

		code := run(ctx, []string{"-server", server.URL}, strings.NewReader("  summarize it\n"), stdout, stderr)

		require.Equal(t, 0, code, stderr.String())
		require.Equal(t, "summarize it", <-receivedPrompt)
		require.Equal(t, "ok\n", stdout.String())
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()

		server, _ := newServer(t, http.StatusInternalServerError, `{"error":"Failed to generate response from OpenAI.","details":"boom"}`)
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

		code := run(ctx, []string{"-server", server.URL, "hi"}, strings.NewReader(""), stdout, stderr)

		require.Equal(t, 1, code)
		require.Empty(t, stdout.String())
		require.Equal(t, "server returned status 500: Failed to generate response from OpenAI. (boom)\n", stderr.String())
	})

	t.Run("non json error", func(t *testing.T) {
		t.Parallel()

		server, _ := newServer(t, http.StatusBadGateway, "bad gateway")
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

		code := run(ctx, []string{"-server", server.URL, "hi"}, strings.NewReader(""), stdout, stderr)

		require.Equal(t, 1, code)
		require.Contains(t, stderr.String(), "server returned status 502: bad gateway")
	})

	t.Run("missing prompt", func(t *testing.T) {
		t.Parallel()

		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

		code := run(ctx, []string{"-server", "http://127.0.0.1:0"}, strings.NewReader("   "), stdout, stderr)

		require.Equal(t, 2, code)
		require.Contains(t, stderr.String(), "usage: docprompt-ask")
	})

	t.Run("invalid flag", func(t *testing.T) {
		t.Parallel()

		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

		code := run(ctx, []string{"-nope"}, strings.NewReader(""), stdout, stderr)

		require.Equal(t, 2, code)
	})
}
