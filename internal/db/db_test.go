package db

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/muzz-discovery/internal/config"
)

func TestGormLogger_SkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	l := newGormLogger(&buf, logger.Warn)
	query := func() (string, int64) { return "SELECT * FROM votes LIMIT 1", 0 }

	l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(context.Background(), time.Now(), query, errors.New("disk I/O error"))
	assert.Contains(t, buf.String(), "disk I/O error")
}

func TestNewDB_SQLite(t *testing.T) {
	cfg := config.New()
	cfg.DB.Driver = "sqlite"
	cfg.DB.SQLitePath = filepath.Join(t.TempDir(), "discovery.db")

	database, err := NewDB(cfg)
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	var row Vote
	err = database.Where("viewer_id = ?", 1).Take(&row).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestNewDB_UnknownDriver(t *testing.T) {
	cfg := config.New()
	cfg.DB.Driver = "postgres"

	_, err := NewDB(cfg)
	assert.ErrorContains(t, err, "unsupported db driver")
}
