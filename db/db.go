// Package db provides a MySQL-backed record store for datakit, built on gorm.
// It is the heavyweight counterpart to the file and sqlite backends in the
// store package, intended for hosts that already run MySQL.
package db

import (
	"context"
	"strings"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// Database is the interface for the database connection
type Database interface {
	DB() (*gorm.DB, error)
	Ping(ctx context.Context) error
	Close() error
}

type mysqlDatabase struct {
	logger logger.Logger
	db     *gorm.DB
}

// NewMySQL opens a MySQL connection with the given configuration.
// A nil configuration is rejected by validation (host, user, password and
// database are required).
func NewMySQL(log logger.Logger, cfg *Config) (Database, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &mysqlDatabase{logger: log}

	var err error
	d.db, err = gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: &gormLogger{
			logger:        log,
			level:         gormLogLevel(cfg.LogLevel),
			slowThreshold: cfg.SlowThreshold,
		},
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	sqldb, err := d.db.DB()
	if err != nil {
		return nil, ErrConnection(err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqldb.Ping(); err != nil {
		return nil, ErrConnection(err)
	}

	d.logger.Info("database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return d, nil
}

func gormLogLevel(level string) glogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return glogger.Silent
	case "error":
		return glogger.Error
	case "info":
		return glogger.Info
	default:
		return glogger.Warn
	}
}

func (d *mysqlDatabase) DB() (*gorm.DB, error) {
	if d.db == nil {
		return nil, ErrConnectionNotEstablished
	}
	return d.db, nil
}

func (d *mysqlDatabase) Ping(ctx context.Context) error {
	sqldb, err := d.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.PingContext(ctx)
}

func (d *mysqlDatabase) Close() error {
	sqldb, err := d.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.Close()
}
