package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// timestamps are stored as fixed width UTC text so they sort correctly
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStorage implements storage using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	now    func() time.Time
	logger *logrus.Logger
}

// NewSQLiteStorage opens the database at path and creates the schema
func NewSQLiteStorage(path string, logger *logrus.Logger) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, now: time.Now, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS generation_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			project_id INTEGER,
			prompt TEXT NOT NULL,
			result TEXT NOT NULL,
			model TEXT NOT NULL,
			tokens_used INTEGER,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generation_logs_user ON generation_logs(user_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS scenes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			sequence_number INTEGER NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			continuity TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_project ON scenes(project_id, sequence_number);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) AppendLog(ctx context.Context, entry *models.GenerationLogEntry) error {
	var projectID, tokens sql.NullInt64
	if entry.ProjectID != nil {
		projectID = sql.NullInt64{Int64: *entry.ProjectID, Valid: true}
	}
	if entry.TokenCount != nil {
		tokens = sql.NullInt64{Int64: int64(*entry.TokenCount), Valid: true}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO generation_logs
		(id, user_id, project_id, prompt, result, model, tokens_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, projectID, entry.Prompt, entry.Result, entry.ModelName, tokens,
		entry.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListLogs(ctx context.Context, userID string, limit int) ([]*models.GenerationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, project_id, prompt, result, model, tokens_used, created_at
		FROM generation_logs
		WHERE (? = '' OR user_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query generation logs: %w", err)
	}
	defer rows.Close()

	entries := []*models.GenerationLogEntry{}
	for rows.Next() {
		var (
			e         models.GenerationLogEntry
			projectID sql.NullInt64
			tokens    sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &projectID, &e.Prompt, &e.Result, &e.ModelName, &tokens, &createdAt); err != nil {
			return nil, err
		}
		if projectID.Valid {
			p := projectID.Int64
			e.ProjectID = &p
		}
		if tokens.Valid {
			n := int(tokens.Int64)
			e.TokenCount = &n
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStorage) InsertScene(ctx context.Context, scene *models.SceneRecord) error {
	continuity, err := json.Marshal(scene.Continuity)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO scenes
		(project_id, title, sequence_number, content, notes, status, continuity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scene.ProjectID, scene.Title, scene.SequenceNumber, scene.Content, scene.Notes, scene.Status,
		string(continuity), now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert scene: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	scene.ID = id
	scene.CreatedAt = now
	scene.UpdatedAt = now
	return nil
}

const sceneColumns = `id, project_id, title, sequence_number, content, notes, status, continuity, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScene(row rowScanner) (*models.SceneRecord, error) {
	var (
		r                    models.SceneRecord
		continuity           string
		createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &r.ProjectID, &r.Title, &r.SequenceNumber, &r.Content, &r.Notes, &r.Status,
		&continuity, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(continuity), &r.Continuity); err != nil {
		return nil, fmt.Errorf("decode continuity: %w", err)
	}
	var err error
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStorage) GetScene(ctx context.Context, id int64) (*models.SceneRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE id = ?`, id)
	scene, err := scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return scene, err
}

func (s *SQLiteStorage) ListScenesByProject(ctx context.Context, projectID int64) ([]*models.SceneRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sceneColumns+` FROM scenes
		WHERE project_id = ?
		ORDER BY sequence_number, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer rows.Close()

	scenes := []*models.SceneRecord{}
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, scene)
	}
	return scenes, rows.Err()
}

func (s *SQLiteStorage) UpdateScene(ctx context.Context, scene *models.SceneRecord) error {
	continuity, err := json.Marshal(scene.Continuity)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE scenes
		SET project_id = ?, title = ?, sequence_number = ?, content = ?, notes = ?, status = ?, continuity = ?, updated_at = ?
		WHERE id = ?`,
		scene.ProjectID, scene.Title, scene.SequenceNumber, scene.Content, scene.Notes, scene.Status,
		string(continuity), now.Format(timeLayout), scene.ID)
	if err != nil {
		return fmt.Errorf("update scene: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	stored, err := s.GetScene(ctx, scene.ID)
	if err != nil {
		return err
	}
	*scene = *stored
	return nil
}

func (s *SQLiteStorage) DeleteScene(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
