// Copyright 2026 The Ecovisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists the daemon's process table, so that a restarted
// daemon can tell which children a previous run left behind.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ecovisor/ecovisor"
)

var ErrNotFound = errors.New("record not found")

// Record is the last known state of one service instance.
type Record struct {
	Service   string    `gorm:"primaryKey;size:255" json:"service"`
	App       string    `gorm:"index;size:255" json:"app"`
	Instance  int       `json:"instance"`
	PID       int       `json:"pid"`
	Status    string    `gorm:"size:32" json:"status"`
	Restarts  int       `json:"restarts"`
	RunID     string    `gorm:"size:64" json:"run_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Record) TableName() string {
	return "processes"
}

type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, service string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, service string) error
	Close() error
}

// SQLStore is a Store kept in a SQLite database.
type SQLStore struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at path and migrates the
// schema.  ":memory:" gives a private in-memory database.
func Open(path string) (*SQLStore, error) {
	db, e := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if e != nil {
		return nil, fmt.Errorf("open %s: %w", path, e)
	}
	if e := db.AutoMigrate(&Record{}); e != nil {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate %s: %w", path, e)
	}
	return &SQLStore{db: db}, nil
}

// Save inserts the record, or replaces the one with the same Service.
func (s *SQLStore) Save(ctx context.Context, rec *Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service"}},
		UpdateAll: true,
	}).Create(rec).Error
}

func (s *SQLStore) Get(ctx context.Context, service string) (*Record, error) {
	var rec Record
	if e := s.db.WithContext(ctx).Where("service = ?", service).First(&rec).Error; e != nil {
		if errors.Is(e, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, service)
		}
		return nil, e
	}
	return &rec, nil
}

// List returns every record ordered by app and instance.
func (s *SQLStore) List(ctx context.Context) ([]Record, error) {
	var recs []Record
	e := s.db.WithContext(ctx).Order("app").Order("instance").Order("service").Find(&recs).Error
	return recs, e
}

func (s *SQLStore) Delete(ctx context.Context, service string) error {
	res := s.db.WithContext(ctx).Where("service = ?", service).Delete(&Record{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, service)
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, e := s.db.DB()
	if e != nil {
		return e
	}
	return sqlDB.Close()
}

// FromService captures the current state of a supervised service.
func FromService(svc *ecovisor.Service) Record {
	rec := Record{
		Service:   svc.Name(),
		App:       svc.App(),
		Instance:  svc.Instance(),
		Status:    svc.State(),
		Restarts:  svc.Restarts(),
		UpdatedAt: time.Now().UTC(),
	}
	if v, e := svc.GetProperty(ecovisor.PropProcessPid); e == nil {
		rec.PID, _ = v.(int)
	}
	if v, e := svc.GetProperty(ecovisor.PropProcessRunID); e == nil {
		rec.RunID, _ = v.(string)
	}
	return rec
}

// Snapshot saves the state of every service, and drops records for
// services that no longer exist.
func Snapshot(ctx context.Context, st Store, svcs []*ecovisor.Service) error {
	live := make(map[string]bool, len(svcs))
	for _, svc := range svcs {
		rec := FromService(svc)
		if e := st.Save(ctx, &rec); e != nil {
			return e
		}
		live[rec.Service] = true
	}
	recs, e := st.List(ctx)
	if e != nil {
		return e
	}
	for _, rec := range recs {
		if !live[rec.Service] {
			if e := st.Delete(ctx, rec.Service); e != nil && !errors.Is(e, ErrNotFound) {
				return e
			}
		}
	}
	return nil
}

// Stale returns the records whose PID still names a live process.  Called
// before any service starts, these are children left over from an earlier
// daemon.
func Stale(ctx context.Context, st Store) ([]Record, error) {
	recs, e := st.List(ctx)
	if e != nil {
		return nil, e
	}
	var stale []Record
	for _, rec := range recs {
		if rec.PID > 0 && alive(rec.PID) {
			stale = append(stale, rec)
		}
	}
	return stale, nil
}

func alive(pid int) bool {
	proc, e := os.FindProcess(pid)
	if e != nil {
		return false
	}
	e = proc.Signal(syscall.Signal(0))
	return e == nil || errors.Is(e, syscall.EPERM)
}
