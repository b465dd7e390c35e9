package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	languages       []string
	matcher         language.Matcher
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer from the embedded message files
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	defaultTag, err := language.Parse(cfg.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", cfg.DefaultLanguage, err)
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	// default language first so the matcher falls back to it
	languages := []string{cfg.DefaultLanguage}
	for _, lang := range cfg.Languages {
		if lang != cfg.DefaultLanguage {
			languages = append(languages, lang)
		}
	}

	tags := make([]language.Tag, 0, len(languages))
	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range languages {
		data, err := locales.ReadFile(fmt.Sprintf("locales/%s.json", lang))
		if err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, lang+".json"); err != nil {
			return nil, fmt.Errorf("failed to parse language file %s: %w", lang, err)
		}
		tags = append(tags, language.Make(lang))
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		languages:       languages,
		matcher:         language.NewMatcher(tags),
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Match picks the supported language that best fits an Accept-Language header
func (l *Localizer) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return l.defaultLanguage
	}

	_, index, confidence := l.matcher.Match(tags...)
	if confidence == language.No {
		return l.defaultLanguage
	}
	return l.languages[index]
}

// Message IDs
const (
	MsgRateLimitExceeded    = "rate_limit_exceeded"
	MsgProviderUnavailable  = "provider_unavailable"
	MsgInvalidConfiguration = "invalid_configuration"
	MsgBadRequest           = "bad_request"
	MsgUnauthorized         = "unauthorized"
	MsgNotFound             = "not_found"
	MsgInternalError        = "internal_error"
	MsgSceneDeleted         = "scene_deleted"
)
