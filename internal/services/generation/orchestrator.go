package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/cf-ai-screenwriter-go/internal/middleware"
	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/cf-ai-screenwriter-go/internal/services/ai"
	"github.com/cf-ai-screenwriter-go/internal/services/cache"
	"github.com/cf-ai-screenwriter-go/pkg/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// CacheModelName is logged as the model of responses served from the cache
const CacheModelName = "cache"

const (
	defaultProviderTimeout = 30 * time.Second
	defaultLogTimeout      = 5 * time.Second
)

// LogWriter persists generation log entries
type LogWriter interface {
	AppendLog(ctx context.Context, entry *models.GenerationLogEntry) error
}

// Orchestrator serves generation requests: admission, cache lookup, provider
// strategy with a single fallback, cache write and audit log.
type Orchestrator struct {
	cfg       config.GenerationConfig
	limiter   middleware.RateLimiter
	cache     cache.Service
	primary   ai.Provider
	secondary ai.Provider
	logs      LogWriter
	tokens    *ai.TokenCounter
	metrics   *middleware.Metrics
	inflight  singleflight.Group
	now       func() time.Time
	logger    *logrus.Logger
}

// NewOrchestrator wires the orchestrator. Either provider may be nil, but not both.
func NewOrchestrator(
	cfg *config.GenerationConfig,
	limiter middleware.RateLimiter,
	responses cache.Service,
	primary, secondary ai.Provider,
	logs LogWriter,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) (*Orchestrator, error) {
	if primary == nil && secondary == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrInvalidConfiguration)
	}

	o := &Orchestrator{
		cfg:       *cfg,
		limiter:   limiter,
		cache:     responses,
		primary:   primary,
		secondary: secondary,
		logs:      logs,
		metrics:   metrics,
		now:       time.Now,
		logger:    logger,
	}
	if o.cfg.ProviderTimeout <= 0 {
		o.cfg.ProviderTimeout = defaultProviderTimeout
	}
	if o.cfg.LogTimeout <= 0 {
		o.cfg.LogTimeout = defaultLogTimeout
	}
	if cfg.CountTokens {
		o.tokens = ai.NewTokenCounter(logger)
	}
	return o, nil
}

type served struct {
	text  string
	model string
}

// Generate serves req. It fails with ErrRateLimited, ErrProviderUnavailable or
// ErrInvalidConfiguration. Log write failures are never returned.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	log := logger.WithRequester(o.logger, req.Requester.UserID, req.Requester.ClientID).
		WithField("hint", string(req.ProviderHint))

	if err := o.limiter.Admit(ctx, req.Requester.ClientID); err != nil {
		if errors.Is(err, ErrRateLimited) {
			o.metrics.RecordRateLimitExceeded()
			o.metrics.RecordGeneration("rate_limited")
		}
		return nil, err
	}

	key := cache.Fingerprint(req.Prompt, req.ProviderHint)
	if text, ok := o.cache.Get(key); ok {
		o.metrics.RecordCacheHit()
		o.metrics.RecordGeneration("cache")
		log.Debug("Serving generation from cache")
		o.record(ctx, req, text, CacheModelName)
		return &models.GenerationResult{Text: text, Model: CacheModelName, Cached: true}, nil
	}
	o.metrics.RecordCacheMiss()

	strategy, err := Plan(req.ProviderHint, o.cfg.PreferPrimary, o.primary, o.secondary)
	if err != nil {
		o.metrics.RecordGeneration("invalid_configuration")
		return nil, err
	}

	run := func(ctx context.Context) (interface{}, error) {
		text, model, err := o.execute(ctx, strategy, req)
		if err != nil {
			return nil, err
		}
		o.cache.Set(key, text)
		return served{text: text, model: model}, nil
	}

	var v interface{}
	if o.cfg.DedupeInFlight {
		v, err = o.shared(ctx, key, run)
	} else {
		v, err = run(ctx)
	}
	if err != nil {
		o.metrics.RecordGeneration("failed")
		log.WithError(err).Error("Generation failed")
		return nil, err
	}

	out := v.(served)
	o.metrics.RecordGeneration("served")
	o.record(ctx, req, out.text, out.model)

	return &models.GenerationResult{Text: out.text, Model: out.model}, nil
}

// shared runs fn once for all concurrent callers of key. The shared call is
// detached from any single caller's cancellation and stays bounded by the
// per-step provider timeout; each caller stops waiting when its own ctx is done.
func (o *Orchestrator) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	detached := context.WithoutCancel(ctx)
	ch := o.inflight.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, ctx.Err())
	}
}

// execute walks the strategy. A failed step hands over to the next one
// exactly once; cancellation by the caller stops the walk.
func (o *Orchestrator) execute(ctx context.Context, strategy Strategy, req models.GenerationRequest) (string, string, error) {
	opts := ai.Options{
		MaxTokens:   req.MaxTokens,
		Temperature: o.cfg.DefaultTemperature,
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = o.cfg.DefaultMaxTokens
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}

	var errs []error
	for i, step := range strategy.Steps {
		if i > 0 {
			prev := strategy.Steps[i-1]
			o.metrics.RecordFallback(prev.Slot, step.Slot)
			o.logger.WithFields(logrus.Fields{
				"from": prev.Provider.Name(),
				"to":   step.Provider.Name(),
			}).Warn("Falling back to next provider")
		}

		text, err := o.call(ctx, step, req.Prompt, opts)
		if err == nil {
			return text, step.Provider.Name(), nil
		}
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
	}

	return "", "", fmt.Errorf("%w: %w", ErrProviderUnavailable, errors.Join(errs...))
}

func (o *Orchestrator) call(ctx context.Context, step Step, prompt string, opts ai.Options) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	text, err := step.Provider.Call(callCtx, prompt, opts)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			status = "timeout"
		}
	}
	o.metrics.RecordProviderRequest(step.Slot, status, duration)

	fields := logrus.Fields{
		"slot":     step.Slot,
		"model":    step.Provider.Name(),
		"duration": duration.String(),
	}
	if err != nil {
		o.logger.WithFields(fields).WithError(err).Warn("Provider call failed")
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("provider %s timed out after %s: %w", step.Provider.Name(), o.cfg.ProviderTimeout, err)
		}
		return "", err
	}
	o.logger.WithFields(fields).Debug("Provider call succeeded")
	return text, nil
}

// record appends a log entry. It runs detached from caller cancellation and
// only reports failures through logs and metrics.
func (o *Orchestrator) record(ctx context.Context, req models.GenerationRequest, text, model string) {
	if o.logs == nil {
		return
	}

	entry := &models.GenerationLogEntry{
		ID:        uuid.NewString(),
		UserID:    req.Requester.UserID,
		ProjectID: req.Requester.ProjectID,
		Prompt:    req.Prompt,
		Result:    text,
		ModelName: model,
		CreatedAt: o.now().UTC(),
	}
	if o.tokens != nil && model != CacheModelName {
		if n, ok := o.tokens.Count(req.Prompt + text); ok {
			entry.TokenCount = &n
		}
	}

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.LogTimeout)
	defer cancel()

	if err := o.logs.AppendLog(logCtx, entry); err != nil {
		o.metrics.RecordLogWriteFailure()
		o.logger.WithFields(logrus.Fields{
			"user_id": entry.UserID,
			"model":   entry.ModelName,
		}).WithError(err).Warn("Failed to write generation log")
	}
}
