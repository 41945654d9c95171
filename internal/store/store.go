// Package store persists authenticated-state snapshots in PostgreSQL.
// One row per account identity; writes are upserts keyed by username.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Jasmitsingh01/tiktok/api/schemas"
)

// ErrNotFound is returned when no session row exists for the username.
var ErrNotFound = errors.New("session not found")

// DBPool abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides the PostgreSQL session repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const upsertSessionSQL = `
        INSERT INTO user_sessions
            (username, platform, cookies, local_storage, session_storage,
             user_agent, last_login, is_valid, login_count, last_used)
        VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, 1, $7)
        ON CONFLICT (username) DO UPDATE SET
            platform = EXCLUDED.platform,
            cookies = EXCLUDED.cookies,
            local_storage = EXCLUDED.local_storage,
            session_storage = EXCLUDED.session_storage,
            user_agent = EXCLUDED.user_agent,
            last_login = EXCLUDED.last_login,
            is_valid = TRUE,
            login_count = user_sessions.login_count + 1,
            last_used = EXCLUDED.last_used;
    `

// Save upserts the snapshot for record.Username. A repeat save refreshes
// the validity window and increments the login counter; it never
// produces a second row for the same identity.
func (s *Store) Save(ctx context.Context, record *schemas.SessionRecord) error {
	if record == nil || record.Username == "" {
		return errors.New("session record requires a username")
	}

	cookies, err := json.Marshal(record.Cookies)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	localStorage, err := json.Marshal(record.LocalStorage)
	if err != nil {
		return fmt.Errorf("failed to encode local storage: %w", err)
	}
	sessionStorage, err := json.Marshal(record.SessionStorage)
	if err != nil {
		return fmt.Errorf("failed to encode session storage: %w", err)
	}

	lastLogin := record.LastLogin
	if lastLogin.IsZero() {
		lastLogin = time.Now()
	}

	if _, err := s.pool.Exec(ctx, upsertSessionSQL,
		record.Username, string(record.Platform),
		cookies, localStorage, sessionStorage,
		record.UserAgent, lastLogin,
	); err != nil {
		return fmt.Errorf("failed to upsert session for %s: %w", record.Username, err)
	}

	s.log.Info("Session snapshot persisted",
		zap.String("username", record.Username),
		zap.Int("cookies", len(record.Cookies)))
	return nil
}

const loadSessionSQL = `
        SELECT username, platform, cookies, local_storage, session_storage,
               user_agent, last_login, is_valid, login_count, last_used
        FROM user_sessions
        WHERE username = $1;
    `

// Load fetches the snapshot for a username. Returns ErrNotFound when no
// row exists.
func (s *Store) Load(ctx context.Context, username string) (*schemas.SessionRecord, error) {
	var (
		record         schemas.SessionRecord
		platform       string
		cookies        []byte
		localStorage   []byte
		sessionStorage []byte
	)

	err := s.pool.QueryRow(ctx, loadSessionSQL, username).Scan(
		&record.Username, &platform, &cookies, &localStorage, &sessionStorage,
		&record.UserAgent, &record.LastLogin, &record.IsValid,
		&record.Metadata.LoginCount, &record.Metadata.LastUsed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session for %s: %w", username, err)
	}

	record.Platform = schemas.PlatformType(platform)
	if err := json.Unmarshal(cookies, &record.Cookies); err != nil {
		return nil, fmt.Errorf("failed to decode cookies for %s: %w", username, err)
	}
	if err := json.Unmarshal(localStorage, &record.LocalStorage); err != nil {
		return nil, fmt.Errorf("failed to decode local storage for %s: %w", username, err)
	}
	if err := json.Unmarshal(sessionStorage, &record.SessionStorage); err != nil {
		return nil, fmt.Errorf("failed to decode session storage for %s: %w", username, err)
	}

	return &record, nil
}

// MarkUsed stamps the reuse time after a successful cached-session
// restore.
func (s *Store) MarkUsed(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_sessions SET last_used = $2 WHERE username = $1;`,
		username, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark session used for %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Invalidate flips the validity flag without discarding the snapshot.
// The next login attempt will go through the full credential flow.
// Idempotent: an absent record is not an error.
func (s *Store) Invalidate(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_sessions SET is_valid = FALSE WHERE username = $1;`,
		username)
	if err != nil {
		return fmt.Errorf("failed to invalidate session for %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Debug("No session to invalidate", zap.String("username", username))
		return nil
	}
	s.log.Info("Session invalidated", zap.String("username", username))
	return nil
}

// Delete removes the snapshot entirely. Idempotent: an absent record is
// not an error.
func (s *Store) Delete(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_sessions WHERE username = $1;`,
		username)
	if err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Debug("No session to delete", zap.String("username", username))
	}
	return nil
}

// ListUsernames returns every persisted identity, most recently
// logged-in first.
func (s *Store) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username FROM user_sessions ORDER BY last_login DESC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan username row: %w", err)
		}
		usernames = append(usernames, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return usernames, nil
}
