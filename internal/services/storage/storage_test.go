package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/cf-ai-screenwriter-go/internal/middleware"
	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// backends returns a fresh instance of every backend. Redis runs against an
// in-process miniredis server.
func backends(t *testing.T) map[string]*Manager {
	t.Helper()
	logger := quietLogger()
	metrics := middleware.NewMetrics()

	sqliteManager, err := NewManager(&config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "db", "test.db")},
	}, metrics, logger)
	if err != nil {
		t.Fatalf("sqlite NewManager() error = %v", err)
	}

	memoryManager, err := NewManager(&config.StorageConfig{Type: "memory"}, metrics, logger)
	if err != nil {
		t.Fatalf("memory NewManager() error = %v", err)
	}

	mr := miniredis.RunT(t)
	redisManager, err := NewManager(&config.StorageConfig{
		Type:  "redis",
		Redis: config.RedisConfig{Addr: mr.Addr()},
	}, metrics, logger)
	if err != nil {
		t.Fatalf("redis NewManager() error = %v", err)
	}
	if redisManager.GetRedisClient() == nil {
		t.Fatal("redis manager should expose its client")
	}

	t.Cleanup(func() {
		sqliteManager.Close()
		memoryManager.Close()
		redisManager.Close()
	})

	return map[string]*Manager{
		"sqlite": sqliteManager,
		"memory": memoryManager,
		"redis":  redisManager,
	}
}

func TestLogs(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			project := int64(3)
			tokens := 128

			entries := []*models.GenerationLogEntry{
				{UserID: "u1", Prompt: "p1", Result: "r1", ModelName: "llama2", CreatedAt: base},
				{UserID: "u2", Prompt: "p2", Result: "r2", ModelName: "cache", CreatedAt: base.Add(time.Second)},
				{UserID: "u1", ProjectID: &project, Prompt: "p3", Result: "r3", ModelName: "gemini-pro", TokenCount: &tokens, CreatedAt: base.Add(2 * time.Second)},
			}
			for _, e := range entries {
				if err := m.AppendLog(ctx, e); err != nil {
					t.Fatalf("AppendLog() error = %v", err)
				}
				if e.ID == "" {
					t.Error("AppendLog() should assign an id")
				}
			}

			got, err := m.ListLogs(ctx, "u1", 10)
			if err != nil {
				t.Fatalf("ListLogs() error = %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 entries for u1, got %d", len(got))
			}
			newest := got[0]
			if newest.Prompt != "p3" || newest.ModelName != "gemini-pro" {
				t.Errorf("newest entry = %+v", newest)
			}
			if newest.ProjectID == nil || *newest.ProjectID != 3 || newest.TokenCount == nil || *newest.TokenCount != 128 {
				t.Errorf("optional fields not preserved: %+v", newest)
			}
			if !newest.CreatedAt.Equal(base.Add(2 * time.Second)) {
				t.Errorf("CreatedAt = %v", newest.CreatedAt)
			}
			if got[1].ProjectID != nil || got[1].TokenCount != nil {
				t.Errorf("absent optional fields should stay nil: %+v", got[1])
			}

			all, err := m.ListLogs(ctx, "", 2)
			if err != nil {
				t.Fatalf("ListLogs() error = %v", err)
			}
			if len(all) != 2 || all[0].Prompt != "p3" || all[1].Prompt != "p2" {
				t.Errorf("unexpected page %+v", all)
			}
		})
	}
}

func TestScenesCRUD(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			second := &models.SceneRecord{ProjectID: 1, Title: "Escape", SequenceNumber: 2,
				Continuity: models.Scene{Setting: "Roof", TimeOfDay: models.Night, CharactersPresent: []string{"Mara"}}}
			first := &models.SceneRecord{ProjectID: 1, Title: "Opening", SequenceNumber: 1, Content: "INT. VAULT - DAY"}
			other := &models.SceneRecord{ProjectID: 2, Title: "Elsewhere", SequenceNumber: 1}

			for _, s := range []*models.SceneRecord{second, first, other} {
				if err := m.InsertScene(ctx, s); err != nil {
					t.Fatalf("InsertScene() error = %v", err)
				}
				if s.ID == 0 || s.Status != "draft" || s.CreatedAt.IsZero() {
					t.Errorf("inserted scene missing defaults: %+v", s)
				}
			}

			scenes, err := m.ListScenesByProject(ctx, 1)
			if err != nil {
				t.Fatalf("ListScenesByProject() error = %v", err)
			}
			if len(scenes) != 2 || scenes[0].Title != "Opening" || scenes[1].Title != "Escape" {
				t.Fatalf("scenes should be ordered by sequence number: %+v", scenes)
			}
			if scenes[1].Continuity.Setting != "Roof" || scenes[1].Continuity.CharactersPresent[0] != "Mara" {
				t.Errorf("continuity not preserved: %+v", scenes[1].Continuity)
			}
			if scenes[1].ToScene().SequenceIndex != 2 {
				t.Errorf("ToScene() should use the sequence number")
			}

			first.Title = "Cold Open"
			first.SequenceNumber = 3
			first.Status = "final"
			if err := m.UpdateScene(ctx, first); err != nil {
				t.Fatalf("UpdateScene() error = %v", err)
			}
			got, err := m.GetScene(ctx, first.ID)
			if err != nil {
				t.Fatalf("GetScene() error = %v", err)
			}
			if got.Title != "Cold Open" || got.SequenceNumber != 3 || got.Status != "final" || got.Content != "INT. VAULT - DAY" {
				t.Errorf("update not applied: %+v", got)
			}

			scenes, _ = m.ListScenesByProject(ctx, 1)
			if len(scenes) != 2 || scenes[0].Title != "Escape" {
				t.Errorf("reordered list = %+v", scenes)
			}

			if err := m.DeleteScene(ctx, second.ID); err != nil {
				t.Fatalf("DeleteScene() error = %v", err)
			}
			scenes, _ = m.ListScenesByProject(ctx, 1)
			if len(scenes) != 1 {
				t.Errorf("expected 1 scene after delete, got %d", len(scenes))
			}

			if err := m.DeleteScene(ctx, second.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("second delete should be ErrNotFound, got %v", err)
			}
			missing := &models.SceneRecord{ID: 9999, ProjectID: 1, Title: "x", SequenceNumber: 1}
			if err := m.UpdateScene(ctx, missing); !errors.Is(err, ErrNotFound) {
				t.Errorf("update of missing scene should be ErrNotFound, got %v", err)
			}
			if _, err := m.GetScene(ctx, 9999); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetScene() of missing scene should be ErrNotFound, got %v", err)
			}

			empty, err := m.ListScenesByProject(ctx, 42)
			if err != nil || empty == nil || len(empty) != 0 {
				t.Errorf("unknown project should yield an empty list, got %v, %v", empty, err)
			}
		})
	}
}

func TestNewManagerRejectsUnknownType(t *testing.T) {
	_, err := NewManager(&config.StorageConfig{Type: "postgres"}, middleware.NewMetrics(), quietLogger())
	if !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestRedisStorageUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	_, err = NewManager(&config.StorageConfig{Type: "redis", Redis: config.RedisConfig{Addr: addr}}, nil, quietLogger())
	if err == nil {
		t.Fatal("expected an error when redis is unreachable")
	}
}

func TestRedisStorageKeepsProjectIndexOnMove(t *testing.T) {
	mr := miniredis.RunT(t)
	m, err := NewManager(&config.StorageConfig{Type: "redis", Redis: config.RedisConfig{Addr: mr.Addr()}}, nil, quietLogger())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()
	ctx := context.Background()

	scene := &models.SceneRecord{ProjectID: 1, Title: "Drift", SequenceNumber: 1}
	if err := m.InsertScene(ctx, scene); err != nil {
		t.Fatalf("InsertScene() error = %v", err)
	}
	scene.ProjectID = 2
	if err := m.UpdateScene(ctx, scene); err != nil {
		t.Fatalf("UpdateScene() error = %v", err)
	}

	if old, _ := m.ListScenesByProject(ctx, 1); len(old) != 0 {
		t.Errorf("scene still indexed under its old project: %+v", old)
	}
	if moved, _ := m.ListScenesByProject(ctx, 2); len(moved) != 1 || moved[0].Title != "Drift" {
		t.Errorf("scene not indexed under its new project: %+v", moved)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screenwriter.db")
	logger := quietLogger()

	s, err := NewSQLiteStorage(path, logger)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	scene := &models.SceneRecord{ProjectID: 5, Title: "Pilot", SequenceNumber: 1, Status: "draft"}
	if err := s.InsertScene(context.Background(), scene); err != nil {
		t.Fatalf("InsertScene() error = %v", err)
	}
	s.Close()

	s, err = NewSQLiteStorage(path, logger)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.GetScene(context.Background(), scene.ID)
	if err != nil || got.Title != "Pilot" {
		t.Errorf("GetScene() after reopen = %+v, %v", got, err)
	}
}
