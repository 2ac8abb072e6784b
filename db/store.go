package db

import (
	"encoding/json"
	"errors"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one persisted namespace/value row. Values are JSON blobs; the
// store never interprets them.
type Record struct {
	Namespace string `gorm:"primaryKey;size:255"`
	Value     []byte `gorm:"type:blob;not null"`
}

// Store is a store.Backend persisting records in a MySQL table. Backend
// semantics apply: errors on the hot path are logged and read as absence.
type Store struct {
	log   logger.Logger
	db    *gorm.DB
	table string
}

// NewStore creates a record store on an established database connection and
// migrates its table.
func NewStore(log logger.Logger, database Database, table string) (*Store, error) {
	gdb, err := database.DB()
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = DefaultConfig().Table
	}
	if err := gdb.Table(table).AutoMigrate(&Record{}); err != nil {
		return nil, ErrMigration(err)
	}
	return &Store{log: log, db: gdb, table: table}, nil
}

func (s *Store) Get(namespace string, out any) bool {
	var rec Record
	err := s.db.Table(s.table).Where("namespace = ?", namespace).Take(&rec).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("failed to read record, treating as absent",
				zap.String("namespace", namespace),
				zap.Error(err),
			)
		}
		return false
	}
	if err := json.Unmarshal(rec.Value, out); err != nil {
		s.log.Warn("failed to decode record, treating as absent",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *Store) Set(namespace string, value any) {
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
	err = s.db.Table(s.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&Record{Namespace: namespace, Value: data}).Error
	if err != nil {
		s.log.Error("failed to write record",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	}
}

func (s *Store) Remove(namespace string) {
	err := s.db.Table(s.table).Where("namespace = ?", namespace).Delete(&Record{}).Error
	if err != nil {
		s.log.Warn("failed to remove record",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	}
}
