package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	errx "github.com/ragkb-chat/core/internal/core/error"
	"github.com/ragkb-chat/core/internal/model"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

// SQLiteSystemContextStore persists presets in a SQLite database.
type SQLiteSystemContextStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteSystemContextStore(dsn string) (*SQLiteSystemContextStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	s := &SQLiteSystemContextStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate preset store: %w", err)
	}
	return s, nil
}

func (s *SQLiteSystemContextStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS system_contexts (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_system_contexts_created_at ON system_contexts(created_at);
`)
	return err
}

func (s *SQLiteSystemContextStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteSystemContextStore) List(ctx context.Context) ([]model.SystemContext, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, content, created_at FROM system_contexts ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		logx.Error().Err(err).Msg("failed to list system contexts")
		return nil, errx.WrapSQL(err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.SystemContext{}
	for rows.Next() {
		sc, err := scanSystemContext(rows)
		if err != nil {
			return nil, errx.WrapSQL(err)
		}
		out = append(out, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapSQL(err)
	}
	return out, nil
}

func (s *SQLiteSystemContextStore) Create(ctx context.Context, title, content string) (*model.SystemContext, error) {
	sc := &model.SystemContext{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO system_contexts (id, title, content, created_at) VALUES (?, ?, ?, ?)`,
		sc.ID, sc.Title, sc.Content, sc.CreatedAt.UnixNano())
	if err != nil {
		logx.Error().Err(err).Str("title", title).Msg("failed to insert system context")
		return nil, errx.WrapSQL(err)
	}
	return sc, nil
}

func (s *SQLiteSystemContextStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM system_contexts WHERE id = ?`, id)
	if err != nil {
		logx.Error().Err(err).Str("system_context_id", id).Msg("failed to delete system context")
		return errx.WrapSQL(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errx.NotFound("system context " + id)
	}
	return nil
}

func (s *SQLiteSystemContextStore) UpdateTitle(ctx context.Context, id, title string) (*model.SystemContext, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE system_contexts SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		logx.Error().Err(err).Str("system_context_id", id).Msg("failed to rename system context")
		return nil, errx.WrapSQL(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, errx.NotFound("system context " + id)
	}

	row := s.db.QueryRowContext(ctx, `SELECT id, title, content, created_at FROM system_contexts WHERE id = ?`, id)
	sc, err := scanSystemContext(row)
	if err != nil {
		return nil, errx.WrapSQL(err)
	}
	return sc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSystemContext(row scanner) (*model.SystemContext, error) {
	var (
		sc        model.SystemContext
		createdAt int64
	)
	if err := row.Scan(&sc.ID, &sc.Title, &sc.Content, &createdAt); err != nil {
		return nil, err
	}
	sc.CreatedAt = time.Unix(0, createdAt).UTC()
	return &sc, nil
}

var _ model.SystemContextStore = (*SQLiteSystemContextStore)(nil)
