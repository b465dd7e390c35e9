package models

import (
	"strings"
	"time"
)

// ProviderHint pins or relaxes provider selection for a generation request
type ProviderHint string

const (
	HintNone      ProviderHint = ""
	HintAuto      ProviderHint = "auto"
	HintPrimary   ProviderHint = "primary"
	HintSecondary ProviderHint = "secondary"
)

// ParseProviderHint normalizes a caller supplied hint. Unknown values are rejected.
func ParseProviderHint(s string) (ProviderHint, bool) {
	switch ProviderHint(strings.ToLower(strings.TrimSpace(s))) {
	case HintNone:
		return HintNone, true
	case HintAuto:
		return HintAuto, true
	case HintPrimary:
		return HintPrimary, true
	case HintSecondary:
		return HintSecondary, true
	}
	return HintNone, false
}

// Pinned reports whether the caller asked for a specific provider
func (h ProviderHint) Pinned() bool {
	return h == HintPrimary || h == HintSecondary
}

// Requester identifies who a generation is made for
type Requester struct {
	UserID    string
	ProjectID *int64
	// ClientID keys the rate limiter, usually the caller network address
	ClientID string
}

// GenerationRequest is consumed by the orchestrator and never mutated.
// A zero MaxTokens or a nil Temperature selects the configured default;
// an explicit temperature of 0 is honored.
type GenerationRequest struct {
	Prompt       string
	ProviderHint ProviderHint
	MaxTokens    int
	Temperature  *float64
	Requester    Requester
}

// GenerationResult is what the orchestrator hands back to callers
type GenerationResult struct {
	Text   string `json:"content"`
	Model  string `json:"model"`
	Cached bool   `json:"cached"`
}

// GenerationLogEntry is an append-only audit record of a served response
type GenerationLogEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ProjectID  *int64    `json:"project_id,omitempty"`
	Prompt     string    `json:"prompt"`
	Result     string    `json:"result"`
	ModelName  string    `json:"model"`
	TokenCount *int      `json:"tokens_used,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CacheEntry represents a cached response
type CacheEntry struct {
	Key       string
	Value     string
	CreatedAt time.Time
}

// CharacterRequest is the caller facing shape of a character generation request
type CharacterRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Background  string `json:"background"`
	Personality string `json:"personality"`
	Goals       string `json:"goals"`
}
