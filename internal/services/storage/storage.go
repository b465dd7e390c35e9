package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/cf-ai-screenwriter-go/internal/middleware"
	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a scene does not exist
var ErrNotFound = errors.New("not found")

const defaultLogLimit = 50

// Storage interface defines storage operations
type Storage interface {
	// Generation log operations
	AppendLog(ctx context.Context, entry *models.GenerationLogEntry) error
	// ListLogs returns the newest entries first. An empty userID lists every user.
	ListLogs(ctx context.Context, userID string, limit int) ([]*models.GenerationLogEntry, error)

	// Scene operations
	InsertScene(ctx context.Context, scene *models.SceneRecord) error
	GetScene(ctx context.Context, id int64) (*models.SceneRecord, error)
	ListScenesByProject(ctx context.Context, projectID int64) ([]*models.SceneRecord, error)
	UpdateScene(ctx context.Context, scene *models.SceneRecord) error
	DeleteScene(ctx context.Context, id int64) error

	Close() error
}

// Manager manages different storage backends
type Manager struct {
	storage     Storage
	redisClient *redis.Client
	metrics     *middleware.Metrics
	logger      *logrus.Logger
}

// NewManager creates a new storage manager
func NewManager(cfg *config.StorageConfig, metrics *middleware.Metrics, logger *logrus.Logger) (*Manager, error) {
	manager := &Manager{
		metrics: metrics,
		logger:  logger,
	}

	switch cfg.Type {
	case "sqlite":
		sqliteStorage, err := NewSQLiteStorage(cfg.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		manager.storage = sqliteStorage
	case "redis":
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		manager.storage = NewRedisStorage(client, logger)
		manager.redisClient = client
	case "memory":
		manager.storage = NewMemoryStorage(logger)
	default:
		return nil, fmt.Errorf("%w: unsupported storage type: %s", config.ErrInvalidConfiguration, cfg.Type)
	}

	logger.WithField("type", cfg.Type).Info("Storage initialized")
	return manager, nil
}

// NewRedisClient connects to redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (m *Manager) observe(op string, start time.Time, err error) {
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	m.metrics.RecordStorageOperation(op, status, time.Since(start))
}

// Delegate methods to underlying storage
func (m *Manager) AppendLog(ctx context.Context, entry *models.GenerationLogEntry) (err error) {
	defer func(start time.Time) { m.observe("append_log", start, err) }(time.Now())
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return m.storage.AppendLog(ctx, entry)
}

func (m *Manager) ListLogs(ctx context.Context, userID string, limit int) (entries []*models.GenerationLogEntry, err error) {
	defer func(start time.Time) { m.observe("list_logs", start, err) }(time.Now())
	if limit <= 0 {
		limit = defaultLogLimit
	}
	return m.storage.ListLogs(ctx, userID, limit)
}

func (m *Manager) InsertScene(ctx context.Context, scene *models.SceneRecord) (err error) {
	defer func(start time.Time) { m.observe("insert_scene", start, err) }(time.Now())
	if scene.Status == "" {
		scene.Status = "draft"
	}
	return m.storage.InsertScene(ctx, scene)
}

func (m *Manager) GetScene(ctx context.Context, id int64) (scene *models.SceneRecord, err error) {
	defer func(start time.Time) { m.observe("get_scene", start, err) }(time.Now())
	return m.storage.GetScene(ctx, id)
}

func (m *Manager) ListScenesByProject(ctx context.Context, projectID int64) (scenes []*models.SceneRecord, err error) {
	defer func(start time.Time) { m.observe("list_scenes", start, err) }(time.Now())
	return m.storage.ListScenesByProject(ctx, projectID)
}

func (m *Manager) UpdateScene(ctx context.Context, scene *models.SceneRecord) (err error) {
	defer func(start time.Time) { m.observe("update_scene", start, err) }(time.Now())
	return m.storage.UpdateScene(ctx, scene)
}

func (m *Manager) DeleteScene(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { m.observe("delete_scene", start, err) }(time.Now())
	return m.storage.DeleteScene(ctx, id)
}

// Close releases the backend
func (m *Manager) Close() error {
	return m.storage.Close()
}

// GetRedisClient returns the Redis client if available
func (m *Manager) GetRedisClient() *redis.Client {
	return m.redisClient
}
