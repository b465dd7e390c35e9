package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/sirupsen/logrus"
)

// OpenAIProvider talks to any OpenAI compatible chat completions endpoint
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewOpenAIProvider creates a chat completions provider
func NewOpenAIProvider(cfg config.ProviderConfig, httpClient *http.Client, logger *logrus.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.model
}

// Call sends prompt as a single user message
func (p *OpenAIProvider) Call(ctx context.Context, prompt string, opts Options) (string, error) {
	reqBody := map[string]interface{}{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  opts.MaxTokens,
		"temperature": opts.Temperature,
	}

	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	p.logger.WithFields(logrus.Fields{
		"model": p.model,
		"url":   url,
	}).Debug("Sending chat completion request")

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	headers := map[string]string{"Authorization": fmt.Sprintf("Bearer %s", p.apiKey)}
	if err := postJSON(ctx, p.httpClient, p.model, url, headers, reqBody, &result); err != nil {
		return "", err
	}

	if result.Error.Message != "" {
		return "", &ProviderError{Provider: p.model, Err: fmt.Errorf("AI error: %s", result.Error.Message)}
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", &ProviderError{Provider: p.model, Err: errors.New("no response from AI")}
	}

	return result.Choices[0].Message.Content, nil
}
