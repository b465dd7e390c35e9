package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// maxLogsPerList caps each generation log list
const maxLogsPerList = 10000

const (
	allLogsKey = "generation_logs:all"
	sceneIDKey = "scenes:next_id"
)

// RedisStorage implements storage using Redis
type RedisStorage struct {
	client *redis.Client
	now    func() time.Time
	logger *logrus.Logger
}

func NewRedisStorage(client *redis.Client, logger *logrus.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		now:    time.Now,
		logger: logger,
	}
}

func userLogsKey(userID string) string {
	return fmt.Sprintf("generation_logs:user:%s", userID)
}

func sceneRecordKey(id int64) string {
	return fmt.Sprintf("scene:%d", id)
}

func projectScenesKey(projectID int64) string {
	return fmt.Sprintf("project:%d:scenes", projectID)
}

func (r *RedisStorage) AppendLog(ctx context.Context, entry *models.GenerationLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range []string{allLogsKey, userLogsKey(entry.UserID)} {
			pipe.LPush(ctx, key, data)
			pipe.LTrim(ctx, key, 0, maxLogsPerList-1)
		}
		return nil
	})
	return err
}

func (r *RedisStorage) ListLogs(ctx context.Context, userID string, limit int) ([]*models.GenerationLogEntry, error) {
	key := allLogsKey
	if userID != "" {
		key = userLogsKey(userID)
	}

	items, err := r.client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]*models.GenerationLogEntry, 0, len(items))
	for _, item := range items {
		var e models.GenerationLogEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			r.logger.WithError(err).Warn("Skipping malformed generation log entry")
			continue
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

func (r *RedisStorage) InsertScene(ctx context.Context, scene *models.SceneRecord) error {
	id, err := r.client.Incr(ctx, sceneIDKey).Result()
	if err != nil {
		return err
	}

	now := r.now().UTC()
	scene.ID = id
	scene.CreatedAt = now
	scene.UpdatedAt = now

	return r.writeScene(ctx, scene, nil)
}

// writeScene stores scene and indexes it under its project. previous is
// the stored version, if any, so a project move drops the old index entry.
func (r *RedisStorage) writeScene(ctx context.Context, scene *models.SceneRecord, previous *models.SceneRecord) error {
	data, err := json.Marshal(scene)
	if err != nil {
		return err
	}

	member := strconv.FormatInt(scene.ID, 10)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sceneRecordKey(scene.ID), data, 0)
		if previous != nil && previous.ProjectID != scene.ProjectID {
			pipe.ZRem(ctx, projectScenesKey(previous.ProjectID), member)
		}
		pipe.ZAdd(ctx, projectScenesKey(scene.ProjectID), &redis.Z{
			Score:  float64(scene.SequenceNumber),
			Member: member,
		})
		return nil
	})
	return err
}

func (r *RedisStorage) GetScene(ctx context.Context, id int64) (*models.SceneRecord, error) {
	data, err := r.client.Get(ctx, sceneRecordKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var scene models.SceneRecord
	if err := json.Unmarshal([]byte(data), &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

func (r *RedisStorage) ListScenesByProject(ctx context.Context, projectID int64) ([]*models.SceneRecord, error) {
	ids, err := r.client.ZRange(ctx, projectScenesKey(projectID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	scenes := []*models.SceneRecord{}
	if len(ids) == 0 {
		return scenes, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "scene:" + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var scene models.SceneRecord
		if err := json.Unmarshal([]byte(data), &scene); err != nil {
			r.logger.WithError(err).Warn("Skipping malformed scene")
			continue
		}
		scenes = append(scenes, &scene)
	}
	sortScenes(scenes)
	return scenes, nil
}

func (r *RedisStorage) UpdateScene(ctx context.Context, scene *models.SceneRecord) error {
	existing, err := r.GetScene(ctx, scene.ID)
	if err != nil {
		return err
	}

	scene.CreatedAt = existing.CreatedAt
	scene.UpdatedAt = r.now().UTC()
	return r.writeScene(ctx, scene, existing)
}

func (r *RedisStorage) DeleteScene(ctx context.Context, id int64) error {
	existing, err := r.GetScene(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sceneRecordKey(id))
		pipe.ZRem(ctx, projectScenesKey(existing.ProjectID), strconv.FormatInt(id, 10))
		return nil
	})
	return err
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
