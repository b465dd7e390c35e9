package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/sirupsen/logrus"
)

// OllamaProvider calls a local Ollama server's /api/generate endpoint
type OllamaProvider struct {
	url        string
	model      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewOllamaProvider creates an Ollama provider. BaseURL may be the server root
// or the full /api/generate URL.
func NewOllamaProvider(cfg config.ProviderConfig, httpClient *http.Client, logger *logrus.Logger) *OllamaProvider {
	url := strings.TrimSuffix(cfg.BaseURL, "/")
	if !strings.HasSuffix(url, "/api/generate") {
		url += "/api/generate"
	}
	return &OllamaProvider{
		url:        url,
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (p *OllamaProvider) Name() string {
	return p.model
}

func (p *OllamaProvider) Call(ctx context.Context, prompt string, opts Options) (string, error) {
	reqBody := map[string]interface{}{
		"model":  p.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"num_predict": opts.MaxTokens,
			"temperature": opts.Temperature,
		},
	}

	p.logger.WithFields(logrus.Fields{
		"model": p.model,
		"url":   p.url,
	}).Debug("Sending ollama generate request")

	var result struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := postJSON(ctx, p.httpClient, p.model, p.url, nil, reqBody, &result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", &ProviderError{Provider: p.model, Err: errors.New(result.Error)}
	}
	if result.Response == "" {
		return "", &ProviderError{Provider: p.model, Err: errors.New("empty response")}
	}
	return result.Response, nil
}
