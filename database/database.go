// Copyright 2026 LinkDAO
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/magickw/linkdao/database/models"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Config describes the database configuration.
type Config struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	DataDir      string
}

// Database is the SQLite-backed durable store for governance state: staking
// tiers, stake positions, category policies, proposals, and votes. The
// engines hold the authoritative in-memory registries and write through to
// this store; on startup they reload from it.
type Database struct {
	promRegistry prometheus.Registerer
	db           *gorm.DB
	logger       *slog.Logger
	dataDir      string
}

// New creates a database instance. Uses an in-memory SQLite database when
// no data directory is specified, which is useful for dev mode and testing.
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var gormDb *gorm.DB
	var err error
	if cfg.DataDir == "" {
		// cache=shared allows multiple connections to share the same in-memory database
		gormDb, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(cfg.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(cfg.DataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dbPath := filepath.Join(cfg.DataDir, "governance.sqlite")
		// WAL journal mode, disable sync on write
		connOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)"
		gormDb, err = gorm.Open(
			sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	}
	d := &Database{
		promRegistry: cfg.PromRegistry,
		db:           gormDb,
		logger:       logger,
		dataDir:      cfg.DataDir,
	}
	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("failed to enable database tracing: %w", err)
	}
	// Create table schemas
	for _, model := range models.MigrateModels {
		d.logger.Debug(
			fmt.Sprintf("creating table: %#v", model),
			"component", "database",
		)
		if err := d.db.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("failed to migrate model: %w", err)
		}
	}
	return d, nil
}

// DB returns the underlying gorm.DB instance
func (d *Database) DB() *gorm.DB {
	return d.db
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Close cleans up the database connection
func (d *Database) Close() error {
	sqlDb, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}
