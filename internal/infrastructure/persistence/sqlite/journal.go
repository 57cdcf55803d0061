package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"slMirror/internal/domain"
)

const defaultListLimit = 50

// Journal guarda cada entrada clasificada en la tabla notifications.
type Journal struct {
	db *sql.DB
}

func NewJournal(dbPath string) (*Journal, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: empty db path")
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

func migrate(db *sql.DB) error {
	const notificationsTable = `
CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL,
	domain TEXT NOT NULL,
	type TEXT NOT NULL,
	classification TEXT NOT NULL,
	payload TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at DESC);`

	if _, err := db.Exec(notificationsTable); err != nil {
		return fmt.Errorf("sqlite: migrate notifications: %w", err)
	}

	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// HandleClassified cumple con domain.ClassifiedEventSink.
func (j *Journal) HandleClassified(ctx context.Context, msg domain.ClassifiedMessage) error {
	_, err := j.SaveNotification(ctx, domain.NewNotification(msg))
	return err
}

func (j *Journal) SaveNotification(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	if notification == nil {
		return nil, fmt.Errorf("sqlite: notification nil")
	}

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	const stmt = `
INSERT INTO notifications (event_id, domain, type, classification, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?);
`

	res, err := j.db.ExecContext(
		ctx,
		stmt,
		notification.EventID,
		notification.RecipientDomain,
		notification.Type,
		string(notification.Classification),
		nullableString(notification.Payload),
		notification.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: save notification: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		notification.ID = id
	}

	return notification, nil
}

func (j *Journal) ListNotifications(ctx context.Context, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	const query = `
SELECT id, event_id, domain, type, classification, payload, created_at
FROM notifications
ORDER BY created_at DESC, id DESC
LIMIT ?;
`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		var (
			record         domain.Notification
			classification string
			payload        sql.NullString
			createdAt      sql.NullTime
		)

		if err := rows.Scan(
			&record.ID,
			&record.EventID,
			&record.RecipientDomain,
			&record.Type,
			&classification,
			&payload,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan notification: %w", err)
		}

		record.Classification = domain.Classification(classification)
		record.Payload = payload.String
		record.CreatedAt = createdAt.Time

		out = append(out, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list notifications rows: %w", err)
	}

	return out, nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
