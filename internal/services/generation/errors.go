package generation

import (
	"errors"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/cf-ai-screenwriter-go/internal/middleware"
)

// ErrProviderUnavailable is returned when every provider in the plan failed
var ErrProviderUnavailable = errors.New("provider unavailable")

// Failures Generate can report alongside ErrProviderUnavailable
var (
	ErrRateLimited          = middleware.ErrRateLimited
	ErrInvalidConfiguration = config.ErrInvalidConfiguration
)
