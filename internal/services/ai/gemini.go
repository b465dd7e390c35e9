package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/sirupsen/logrus"
)

// GeminiProvider calls the Generative Language generateContent REST endpoint
type GeminiProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewGeminiProvider creates a Gemini provider
func NewGeminiProvider(cfg config.ProviderConfig, httpClient *http.Client, logger *logrus.Logger) *GeminiProvider {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com"
	}
	return &GeminiProvider{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (p *GeminiProvider) Name() string {
	return p.model
}

func (p *GeminiProvider) Call(ctx context.Context, prompt string, opts Options) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"maxOutputTokens": opts.MaxTokens,
			"temperature":     opts.Temperature,
		},
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(p.model), url.QueryEscape(p.apiKey))

	p.logger.WithField("model", p.model).Debug("Sending gemini generateContent request")

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := postJSON(ctx, p.httpClient, p.model, endpoint, nil, reqBody, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 {
		return "", &ProviderError{Provider: p.model, Err: errors.New("no candidates returned")}
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", &ProviderError{Provider: p.model, Err: errors.New("empty candidate")}
	}
	return text.String(), nil
}
