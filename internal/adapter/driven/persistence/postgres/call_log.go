package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vibelinechat/vibeline/internal/core/domain"
)

const pingTimeout = 5 * time.Second

// Open opens a Postgres pool via the pgx stdlib driver and verifies
// connectivity. The dsn contains secrets and must not be logged.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return db, nil
}

// CallLog mirrors call session lifecycle events into the call_sessions table.
// Rows are updated in place when a session terminates, never deleted.
type CallLog struct {
	db *sql.DB
}

func NewCallLog(ctx context.Context, db *sql.DB) (*CallLog, error) {
	l := &CallLog{db: db}
	if err := l.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("call_sessions schema: %w", err)
	}
	return l, nil
}

func (l *CallLog) ensureSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS call_sessions (
			id              TEXT PRIMARY KEY,
			caller_user_id  TEXT NOT NULL,
			callee_user_id  TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			is_video_call   BOOLEAN NOT NULL DEFAULT FALSE,
			status          TEXT NOT NULL,
			ended_reason    TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at        TIMESTAMPTZ
		)`)
	return err
}

// RecordCreated inserts the session row. ON CONFLICT DO NOTHING keeps the
// insert idempotent for sessions restored from a client payload.
func (l *CallLog) RecordCreated(ctx context.Context, session domain.CallSession) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO call_sessions (id, caller_user_id, callee_user_id, conversation_id, is_video_call, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		session.ID.String(),
		session.CallerUserID.String(),
		session.CalleeUserID.String(),
		session.ConversationID,
		session.IsVideoCall,
		string(session.Status),
	)
	return err
}

func (l *CallLog) RecordStatusChange(ctx context.Context, id domain.SessionID, status domain.CallStatus, reason domain.HangupReason) error {
	if status.Terminal() {
		if reason == "" {
			reason = domain.ReasonNormal
		}
		_, err := l.db.ExecContext(ctx, `
			UPDATE call_sessions
			SET status = $2, ended_reason = $3, ended_at = now()
			WHERE id = $1`,
			id.String(), string(status), string(reason),
		)
		return err
	}
	_, err := l.db.ExecContext(ctx, `UPDATE call_sessions SET status = $2 WHERE id = $1`, id.String(), string(status))
	return err
}
