package resume

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS resume_points (
  ticket_id INTEGER PRIMARY KEY,
  last_message_id INTEGER NOT NULL,
  updated_at_ms INTEGER NOT NULL
);
`

// SQLiteStore persists resume points across process restarts.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

// OpenSQLite opens (and migrates) the resume database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("resume: sqlite path is empty")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "resume: open sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "resume: apply schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LastMessageID(ctx context.Context, ticketID int64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("resume: store is not open")
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_message_id FROM resume_points WHERE ticket_id = ?`, ticketID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "resume: query resume point")
	}
	return id, nil
}

func (s *SQLiteStore) SetLastMessageID(ctx context.Context, ticketID, id int64) error {
	if s == nil || s.db == nil {
		return errors.New("resume: store is not open")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO resume_points (ticket_id, last_message_id, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(ticket_id) DO UPDATE SET
  last_message_id = excluded.last_message_id,
  updated_at_ms = excluded.updated_at_ms
WHERE excluded.last_message_id > resume_points.last_message_id
`, ticketID, id, time.Now().UnixMilli())
	return errors.Wrap(err, "resume: store resume point")
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
