package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cf-ai-screenwriter-go/internal/i18n"
	"github.com/cf-ai-screenwriter-go/internal/services/generation"
	"github.com/cf-ai-screenwriter-go/internal/services/identity"
	"github.com/cf-ai-screenwriter-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a size limited JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// badRequest answers 400 with a localized message
func (a *API) badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error: a.localizer.Get(a.lang(r), i18n.MsgBadRequest, map[string]interface{}{"Detail": detail}),
	})
}

// fail maps err onto a status code and a localized message
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	lang := a.lang(r)

	var (
		status  int
		message string
	)
	switch {
	case errors.Is(err, generation.ErrRateLimited):
		status = http.StatusTooManyRequests
		message = a.localizer.Get(lang, i18n.MsgRateLimitExceeded, nil)
		w.Header().Set("Retry-After", "60")
	case errors.Is(err, generation.ErrProviderUnavailable):
		status = http.StatusBadGateway
		message = a.localizer.Get(lang, i18n.MsgProviderUnavailable, nil)
	case errors.Is(err, generation.ErrInvalidConfiguration):
		status = http.StatusInternalServerError
		message = a.localizer.Get(lang, i18n.MsgInvalidConfiguration, nil)
	case errors.Is(err, identity.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = a.localizer.Get(lang, i18n.MsgUnauthorized, nil)
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
		message = a.localizer.Get(lang, i18n.MsgNotFound, map[string]interface{}{"Resource": "Scene"})
	default:
		status = http.StatusInternalServerError
		message = a.localizer.Get(lang, i18n.MsgInternalError, nil)
	}

	entry := a.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func (a *API) lang(r *http.Request) string {
	return a.localizer.Match(r.Header.Get("Accept-Language"))
}
