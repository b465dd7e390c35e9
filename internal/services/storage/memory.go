package storage

import (
	"context"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// MemoryStorage implements storage using in-memory cache
type MemoryStorage struct {
	logs   *cache.Cache
	scenes *cache.Cache
	nextID atomic.Int64
	now    func() time.Time
	logger *logrus.Logger
}

func NewMemoryStorage(logger *logrus.Logger) *MemoryStorage {
	return &MemoryStorage{
		logs:   cache.New(cache.NoExpiration, cache.NoExpiration),
		scenes: cache.New(cache.NoExpiration, cache.NoExpiration),
		now:    time.Now,
		logger: logger,
	}
}

func (m *MemoryStorage) AppendLog(ctx context.Context, entry *models.GenerationLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	stored := *entry
	m.logs.Set(entry.ID, stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) ListLogs(ctx context.Context, userID string, limit int) ([]*models.GenerationLogEntry, error) {
	entries := []*models.GenerationLogEntry{}
	for _, item := range m.logs.Items() {
		e := item.Object.(models.GenerationLogEntry)
		if userID != "" && e.UserID != userID {
			continue
		}
		entries = append(entries, &e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func sceneKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (m *MemoryStorage) InsertScene(ctx context.Context, scene *models.SceneRecord) error {
	now := m.now().UTC()
	scene.ID = m.nextID.Add(1)
	scene.CreatedAt = now
	scene.UpdatedAt = now

	return m.scenes.Add(sceneKey(scene.ID), *scene, cache.NoExpiration)
}

func (m *MemoryStorage) GetScene(ctx context.Context, id int64) (*models.SceneRecord, error) {
	val, found := m.scenes.Get(sceneKey(id))
	if !found {
		return nil, ErrNotFound
	}
	scene := val.(models.SceneRecord)
	return &scene, nil
}

func (m *MemoryStorage) ListScenesByProject(ctx context.Context, projectID int64) ([]*models.SceneRecord, error) {
	scenes := []*models.SceneRecord{}
	for _, item := range m.scenes.Items() {
		scene := item.Object.(models.SceneRecord)
		if scene.ProjectID == projectID {
			scenes = append(scenes, &scene)
		}
	}
	sortScenes(scenes)
	return scenes, nil
}

func (m *MemoryStorage) UpdateScene(ctx context.Context, scene *models.SceneRecord) error {
	existing, err := m.GetScene(ctx, scene.ID)
	if err != nil {
		return err
	}

	scene.CreatedAt = existing.CreatedAt
	scene.UpdatedAt = m.now().UTC()
	if err := m.scenes.Replace(sceneKey(scene.ID), *scene, cache.NoExpiration); err != nil {
		return ErrNotFound
	}
	return nil
}

func (m *MemoryStorage) DeleteScene(ctx context.Context, id int64) error {
	if _, found := m.scenes.Get(sceneKey(id)); !found {
		return ErrNotFound
	}
	m.scenes.Delete(sceneKey(id))
	return nil
}

func (m *MemoryStorage) Close() error {
	m.logs.Flush()
	m.scenes.Flush()
	return nil
}

// sortScenes orders scenes by sequence number, then id
func sortScenes(scenes []*models.SceneRecord) {
	sort.Slice(scenes, func(i, j int) bool {
		if scenes[i].SequenceNumber == scenes[j].SequenceNumber {
			return scenes[i].ID < scenes[j].ID
		}
		return scenes[i].SequenceNumber < scenes[j].SequenceNumber
	})
}
