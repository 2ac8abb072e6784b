package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite is the flat preferences-style backend: one table of namespace/value
// rows in a SQLite file, JSON-encoded values. The driver is pure Go.
type SQLite struct {
	log   logger.Logger
	sqlDB *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	namespace TEXT PRIMARY KEY,
	value     BLOB NOT NULL
)`

// OpenSQLite opens (creating if needed) a SQLite backend at path.
func OpenSQLite(log logger.Logger, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidPath(path)
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ErrOpenDatabase(path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, ErrOpenDatabase(path, err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, ErrOpenDatabase(path, err)
	}
	return &SQLite{log: log, sqlDB: sqlDB}, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLite) Get(namespace string, out any) bool {
	var data []byte
	err := s.sqlDB.QueryRow(
		`SELECT value FROM records WHERE namespace = ?`, namespace,
	).Scan(&data)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("failed to read record, treating as absent",
				zap.String("namespace", namespace),
				zap.Error(err),
			)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Warn("failed to decode record, treating as absent",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *SQLite) Set(namespace string, value any) {
	if value == nil {
		s.Remove(namespace)
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Error("failed to encode record",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return
	}
	_, err = s.sqlDB.Exec(
		`INSERT INTO records (namespace, value) VALUES (?, ?)
		 ON CONFLICT(namespace) DO UPDATE SET value = excluded.value`,
		namespace, data,
	)
	if err != nil {
		s.log.Error("failed to write record",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	}
}

func (s *SQLite) Remove(namespace string) {
	if _, err := s.sqlDB.Exec(
		`DELETE FROM records WHERE namespace = ?`, namespace,
	); err != nil {
		s.log.Warn("failed to remove record",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	}
}
