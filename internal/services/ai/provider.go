package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/sirupsen/logrus"
)

// Provider is a text generation backend. Primary and secondary providers are
// called through the same shape.
type Provider interface {
	// Name identifies the model that serves the text, e.g. "llama2"
	Name() string
	Call(ctx context.Context, prompt string, opts Options) (string, error)
}

// Options tune a single generation
type Options struct {
	MaxTokens   int
	Temperature float64
}

// ProviderError describes a failed provider call
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProvider builds the provider described by cfg, wrapped with the pacing
// and circuit breaking the configuration asks for. Unconfigured slots return
// a nil provider and no error.
func NewProvider(slot string, cfg config.ProviderConfig, logger *logrus.Logger) (Provider, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	if err := config.ValidateProvider(slot, cfg); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: 120 * time.Second,
	}

	var p Provider
	switch cfg.Kind {
	case "openai":
		p = NewOpenAIProvider(cfg, httpClient, logger)
	case "ollama":
		p = NewOllamaProvider(cfg, httpClient, logger)
	case "gemini":
		p = NewGeminiProvider(cfg, httpClient, logger)
	}

	logger.WithFields(logrus.Fields{
		"slot":     slot,
		"kind":     cfg.Kind,
		"model":    cfg.Model,
		"base_url": cfg.BaseURL,
	}).Info("Provider configured")

	return NewGuarded(p, cfg), nil
}

// postJSON sends body as JSON and decodes a 200 response into out
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return &ProviderError{Provider: provider, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return &ProviderError{Provider: provider, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &ProviderError{Provider: provider, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("request failed: %s", truncate(string(data), 512))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
