package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cf-ai-screenwriter-go/internal/i18n"
	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/cf-ai-screenwriter-go/internal/services/continuity"
	"github.com/cf-ai-screenwriter-go/internal/services/generation"
	"github.com/cf-ai-screenwriter-go/internal/services/identity"
	"github.com/cf-ai-screenwriter-go/pkg/markdown"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Generator serves generation requests
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

// Store is the persistence the API reads and writes
type Store interface {
	ListLogs(ctx context.Context, userID string, limit int) ([]*models.GenerationLogEntry, error)
	InsertScene(ctx context.Context, scene *models.SceneRecord) error
	GetScene(ctx context.Context, id int64) (*models.SceneRecord, error)
	ListScenesByProject(ctx context.Context, projectID int64) ([]*models.SceneRecord, error)
	UpdateScene(ctx context.Context, scene *models.SceneRecord) error
	DeleteScene(ctx context.Context, id int64) error
}

// API is the HTTP surface over the orchestrator, analyzer and scene store
type API struct {
	generator Generator
	analyzer  *continuity.Analyzer
	store     Store
	verifier  identity.Verifier
	localizer *i18n.Localizer
	logger    *logrus.Logger
}

func NewAPI(
	generator Generator,
	analyzer *continuity.Analyzer,
	store Store,
	verifier identity.Verifier,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *API {
	return &API{
		generator: generator,
		analyzer:  analyzer,
		store:     store,
		verifier:  verifier,
		localizer: localizer,
		logger:    logger,
	}
}

// Router builds the route table
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.requestLogger)

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/ai/generate-script", a.requireUser(a.handleGenerateScript)).Methods(http.MethodPost)
	r.HandleFunc("/ai/analyze-script", a.requireUser(a.handleAnalyzeScript)).Methods(http.MethodPost)
	r.HandleFunc("/ai/generate-character", a.requireUser(a.handleGenerateCharacter)).Methods(http.MethodPost)
	r.HandleFunc("/ai/history", a.requireUser(a.handleHistory)).Methods(http.MethodGet)

	r.HandleFunc("/continuity/analyze", a.handleAnalyzeContinuity).Methods(http.MethodPost)
	r.HandleFunc("/continuity/projects/{projectID:[0-9]+}", a.handleProjectContinuity).Methods(http.MethodGet)

	r.HandleFunc("/scenes", a.handleCreateScene).Methods(http.MethodPost)
	r.HandleFunc("/scenes/{projectID:[0-9]+}", a.handleListScenes).Methods(http.MethodGet)
	r.HandleFunc("/scenes/{id:[0-9]+}", a.handleUpdateScene).Methods(http.MethodPut)
	r.HandleFunc("/scenes/{id:[0-9]+}", a.handleDeleteScene).Methods(http.MethodDelete)

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type generateScriptRequest struct {
	Prompt      string   `json:"prompt"`
	Provider    string   `json:"provider"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	ProjectID   *int64   `json:"project_id"`
}

type generateScriptResponse struct {
	models.GenerationResult
	HTML string `json:"html,omitempty"`
}

func (a *API) handleGenerateScript(w http.ResponseWriter, r *http.Request) {
	var body generateScriptRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.badRequest(w, r, "malformed JSON body")
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		a.badRequest(w, r, "prompt is required")
		return
	}
	hint, ok := models.ParseProviderHint(body.Provider)
	if !ok {
		a.badRequest(w, r, "provider must be one of auto, primary, secondary")
		return
	}

	result, err := a.generator.Generate(r.Context(), models.GenerationRequest{
		Prompt:       generation.ScriptPrompt(body.Prompt),
		ProviderHint: hint,
		MaxTokens:    body.MaxTokens,
		Temperature:  body.Temperature,
		Requester:    a.requester(r, body.ProjectID),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp := generateScriptResponse{GenerationResult: *result}
	if r.URL.Query().Get("format") == "html" {
		resp.HTML = markdown.ToHTML(result.Text)
	}
	writeJSON(w, http.StatusOK, resp)
}

type analyzeScriptRequest struct {
	Script    string `json:"script"`
	Provider  string `json:"provider"`
	ProjectID *int64 `json:"project_id"`
}

func (a *API) handleAnalyzeScript(w http.ResponseWriter, r *http.Request) {
	var body analyzeScriptRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.badRequest(w, r, "malformed JSON body")
		return
	}
	if strings.TrimSpace(body.Script) == "" {
		a.badRequest(w, r, "script is required")
		return
	}
	hint, ok := models.ParseProviderHint(body.Provider)
	if !ok {
		a.badRequest(w, r, "provider must be one of auto, primary, secondary")
		return
	}

	result, err := a.generator.Generate(r.Context(), models.GenerationRequest{
		Prompt:       generation.AnalysisPrompt(body.Script),
		ProviderHint: hint,
		Requester:    a.requester(r, body.ProjectID),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analysis": result.Text,
		"model":    result.Model,
		"cached":   result.Cached,
	})
}

type generateCharacterRequest struct {
	models.CharacterRequest
	Provider  string `json:"provider"`
	ProjectID *int64 `json:"project_id"`
}

func (a *API) handleGenerateCharacter(w http.ResponseWriter, r *http.Request) {
	var body generateCharacterRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.badRequest(w, r, "malformed JSON body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		a.badRequest(w, r, "name is required")
		return
	}
	hint, ok := models.ParseProviderHint(body.Provider)
	if !ok {
		a.badRequest(w, r, "provider must be one of auto, primary, secondary")
		return
	}

	result, err := a.generator.Generate(r.Context(), models.GenerationRequest{
		Prompt:       generation.CharacterPrompt(body.CharacterRequest),
		ProviderHint: hint,
		Requester:    a.requester(r, body.ProjectID),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"background": result.Text,
		"model":      result.Model,
		"cached":     result.Cached,
	})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.badRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := a.store.ListLogs(r.Context(), userID(r), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.GenerationLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

type analyzeContinuityRequest struct {
	Scenes []models.Scene `json:"scenes"`
}

func (a *API) handleAnalyzeContinuity(w http.ResponseWriter, r *http.Request) {
	var body analyzeContinuityRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.badRequest(w, r, "malformed JSON body")
		return
	}
	writeJSON(w, http.StatusOK, a.analyzer.Analyze(body.Scenes))
}

func (a *API) handleProjectContinuity(w http.ResponseWriter, r *http.Request) {
	projectID, _ := strconv.ParseInt(mux.Vars(r)["projectID"], 10, 64)

	records, err := a.store.ListScenesByProject(r.Context(), projectID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	scenes := make([]models.Scene, 0, len(records))
	for _, rec := range records {
		scenes = append(scenes, rec.ToScene())
	}
	writeJSON(w, http.StatusOK, a.analyzer.Analyze(scenes))
}

type sceneRequest struct {
	ProjectID      int64        `json:"project_id"`
	Title          string       `json:"title"`
	SequenceNumber int          `json:"sequence_number"`
	Content        string       `json:"content"`
	Notes          string       `json:"notes"`
	Status         string       `json:"status"`
	Continuity     models.Scene `json:"continuity"`
}

func (s sceneRequest) validate() error {
	switch {
	case s.ProjectID <= 0:
		return errors.New("project_id must be positive")
	case strings.TrimSpace(s.Title) == "":
		return errors.New("title is required")
	case s.SequenceNumber < 1:
		return errors.New("sequence_number must be at least 1")
	}
	return nil
}

func (a *API) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	var body sceneRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.badRequest(w, r, "malformed JSON body")
		return
	}
	if err := body.validate(); err != nil {
		a.badRequest(w, r, err.Error())
		return
	}

	scene := &models.SceneRecord{
		ProjectID:      body.ProjectID,
		Title:          body.Title,
		SequenceNumber: body.SequenceNumber,
		Content:        body.Content,
		Notes:          body.Notes,
		Status:         body.Status,
		Continuity:     body.Continuity,
	}
	if err := a.store.InsertScene(r.Context(), scene); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scene)
}

func (a *API) handleListScenes(w http.ResponseWriter, r *http.Request) {
	projectID, _ := strconv.ParseInt(mux.Vars(r)["projectID"], 10, 64)

	scenes, err := a.store.ListScenesByProject(r.Context(), projectID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if scenes == nil {
		scenes = []*models.SceneRecord{}
	}
	writeJSON(w, http.StatusOK, scenes)
}

func (a *API) handleUpdateScene(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	var body sceneRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.badRequest(w, r, "malformed JSON body")
		return
	}

	existing, err := a.store.GetScene(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	// the project a scene belongs to never changes
	body.ProjectID = existing.ProjectID
	if err := body.validate(); err != nil {
		a.badRequest(w, r, err.Error())
		return
	}

	existing.Title = body.Title
	existing.SequenceNumber = body.SequenceNumber
	existing.Content = body.Content
	existing.Notes = body.Notes
	existing.Continuity = body.Continuity
	if body.Status != "" {
		existing.Status = body.Status
	}

	if err := a.store.UpdateScene(r.Context(), existing); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (a *API) handleDeleteScene(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if err := a.store.DeleteScene(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": a.localizer.Get(a.lang(r), i18n.MsgSceneDeleted, nil),
	})
}

func (a *API) requester(r *http.Request, projectID *int64) models.Requester {
	return models.Requester{
		UserID:    userID(r),
		ProjectID: projectID,
		ClientID:  clientID(r),
	}
}
