package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Amund211/docprompt/internal/constants"
)

type generateResponse struct {
	Response *string `json:"response"`
	Error    *string `json:"error"`
	Details  *string `json:"details"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	flags := flag.NewFlagSet("docprompt-ask", flag.ContinueOnError)
	flags.SetOutput(stderr)
	serverURL := flags.String("server", "http://localhost:3000", "base URL of the docprompt server")
	timeout := flags.Duration("timeout", 5*time.Minute, "how long to wait for an answer")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: docprompt-ask [flags] [prompt]")
		fmt.Fprintln(stderr, "The prompt is read from stdin when not given as an argument.")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}

	prompt := strings.Join(flags.Args(), " ")
	if prompt == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "failed to read prompt: %v\n", err)
			return 1
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		flags.Usage()
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	answer, err := ask(ctx, &http.Client{}, *serverURL, prompt)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	fmt.Fprintln(stdout, answer)
	return 0
}

func ask(ctx context.Context, httpClient *http.Client, serverURL string, prompt string) (string, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(serverURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", constants.USER_AGENT)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("server returned status %d", resp.StatusCode)
		if parsed.Error != nil {
			message += ": " + *parsed.Error
		}
		if parsed.Details != nil {
			message += " (" + *parsed.Details + ")"
		}
		return "", errors.New(message)
	}

	if parsed.Response == nil {
		return "", fmt.Errorf("server response is missing the answer")
	}
	return *parsed.Response, nil
}
