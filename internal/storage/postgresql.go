// Package storage persists what the console owns itself: console sessions
// (with the upstream token sealed) and per-admin view preferences. Everything
// else lives behind the upstream admin API.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"store_admin/internal/models"
	"store_admin/internal/pkg/logger"
)

//go:generate mockgen -source=postgresql.go -destination=mocks/mock_storage.go -package=mocks

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

//go:embed schema.sql
var schema string

const (
	createSessionQuery   = `INSERT INTO console.sessions (id, subject, sealed_token, created_at, expires_at) VALUES ($1, $2, $3, $4, $5);`
	getSessionQuery      = `SELECT id, subject, sealed_token, created_at, expires_at, revoked_at FROM console.sessions WHERE id = $1;`
	revokeSessionQuery   = `UPDATE console.sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL;`
	loadPreferencesQuery = `SELECT resource, view_mode, sort_key, sort_direction FROM console.preferences WHERE subject = $1 ORDER BY resource;`
	savePreferenceQuery  = `INSERT INTO console.preferences (subject, resource, view_mode, sort_key, sort_direction, updated_at) VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (subject, resource) DO UPDATE SET view_mode = EXCLUDED.view_mode, sort_key = EXCLUDED.sort_key, sort_direction = EXCLUDED.sort_direction, updated_at = NOW();`
	purgeSessionsQuery = `DELETE FROM console.sessions WHERE expires_at < $1;`
)

// Storage defines the methods required for data storage operations.
type Storage interface {
	// Close closes the database connection.
	Close()

	// Session methods.
	CreateSession(ctx context.Context, session *models.SessionRecord) error
	GetSession(ctx context.Context, id string) (*models.SessionRecord, error)
	RevokeSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error)

	// View preference methods.
	LoadPreferences(ctx context.Context, subject string) ([]models.Preference, error)
	SavePreference(ctx context.Context, pref models.Preference) error
}

// PostgreSQL implements the Storage interface using a PostgreSQL database.
type PostgreSQL struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQL opens the connection and pings the database to ensure connectivity.
func NewPostgreSQL(configDBString string, l *logger.Logger) (*PostgreSQL, error) {
	db, err := sql.Open("pgx", configDBString)
	if err != nil {
		l.Sugar().Errorf("Failed to open a database: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	const defaultTimeout = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		l.Sugar().Errorf("Database ping failed: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	return &PostgreSQL{db: db, log: l}, nil
}

// Migrate creates the console schema if it does not exist yet.
func (postgresql *PostgreSQL) Migrate(ctx context.Context) error {
	if _, err := postgresql.db.ExecContext(ctx, schema); err != nil {
		postgresql.log.Sugar().Errorf("Failed to apply the console schema: %s", err)
		return err
	}
	return nil
}

// Close closes the database connection if it is open.
func (postgresql *PostgreSQL) Close() {
	if postgresql.db != nil {
		postgresql.db.Close()
	}
}

func (postgresql *PostgreSQL) CreateSession(ctx context.Context, session *models.SessionRecord) error {
	_, err := postgresql.db.ExecContext(ctx, createSessionQuery,
		session.ID, session.Subject, session.SealedToken, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createSessionQuery: %s", err)
		return err
	}
	return nil
}

// GetSession returns the session with the given id, revoked or not.
func (postgresql *PostgreSQL) GetSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	session := &models.SessionRecord{}
	var revokedAt sql.NullTime

	err := postgresql.db.QueryRowContext(ctx, getSessionQuery, id).Scan(
		&session.ID, &session.Subject, &session.SealedToken, &session.CreatedAt, &session.ExpiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getSessionQuery: %s", err)
		return nil, err
	}
	if revokedAt.Valid {
		session.RevokedAt = &revokedAt.Time
	}
	return session, nil
}

// RevokeSession marks the session as signed out. Revoking twice is not an error.
func (postgresql *PostgreSQL) RevokeSession(ctx context.Context, id string) error {
	if _, err := postgresql.db.ExecContext(ctx, revokeSessionQuery, id); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query revokeSessionQuery: %s", err)
		return err
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that expired before the given time.
func (postgresql *PostgreSQL) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	result, err := postgresql.db.ExecContext(ctx, purgeSessionsQuery, before)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query purgeSessionsQuery: %s", err)
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in purgeSessionsQuery: %s", err)
		return 0, err
	}
	return rows, nil
}

func (postgresql *PostgreSQL) LoadPreferences(ctx context.Context, subject string) ([]models.Preference, error) {
	rows, err := postgresql.db.QueryContext(ctx, loadPreferencesQuery, subject)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query loadPreferencesQuery: %s", err)
		return nil, err
	}
	defer rows.Close()

	const initialPreferencesCapacity = 8
	prefs := make([]models.Preference, 0, initialPreferencesCapacity)
	for rows.Next() {
		pref := models.Preference{Subject: subject}
		if err := rows.Scan(&pref.Resource, &pref.ViewMode, &pref.SortKey, &pref.SortDirection); err != nil {
			postgresql.log.Sugar().Errorf("Failed to scan a preference in LoadPreferences method: %s", err)
			return nil, err
		}
		prefs = append(prefs, pref)
	}

	if err := rows.Err(); err != nil {
		postgresql.log.Sugar().Errorf("The last error encountered by Rows.Scan in LoadPreferences method: %s", err)
		return prefs, err
	}
	return prefs, nil
}

// SavePreference upserts the view state of one resource screen.
func (postgresql *PostgreSQL) SavePreference(ctx context.Context, pref models.Preference) error {
	_, err := postgresql.db.ExecContext(ctx, savePreferenceQuery,
		pref.Subject, pref.Resource, string(pref.ViewMode), pref.SortKey, string(pref.SortDirection))
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query savePreferenceQuery: %s", err)
		return err
	}
	return nil
}
