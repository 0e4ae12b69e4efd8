package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewop/brewboard/internal/slot"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brewboard.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "default", cfg.Instance)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "10:30", cfg.Slots.MorningEnd)
	assert.Equal(t, 5, cfg.Transactions.Attempts)

	bounds, err := cfg.Boundaries()
	require.NoError(t, err)
	assert.Equal(t, slot.DefaultBoundaries(), bounds)
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
version: "1.0"
instance: office
redis:
  addr: redis.internal:6380
  db: 2
timezone: Asia/Kolkata
slots:
  morning_end: "11:00"
  evening_start: "16:00"
  evening_end: "18:00"
transactions:
  attempts: 8
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "office", cfg.Instance)
		assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
		assert.Equal(t, 2, cfg.Redis.DB)
		assert.Equal(t, 8, cfg.Transactions.Attempts)

		bounds, err := cfg.Boundaries()
		require.NoError(t, err)
		assert.Equal(t, 11*60, bounds.MorningEnd)
		assert.Equal(t, 18*60, bounds.EveningEnd)

		loc, err := cfg.Location()
		require.NoError(t, err)
		assert.Equal(t, "Asia/Kolkata", loc.String())
	})

	t.Run("minimal config gets defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `version: "1.0"`))
		require.NoError(t, err)
		assert.Equal(t, "default", cfg.Instance)
		assert.Equal(t, "15:00", cfg.Slots.EveningStart)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/brewboard.yml")
		assert.Error(t, err)
	})

	t.Run("malformed YAML", func(t *testing.T) {
		_, err := Load(writeConfig(t, "version: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("unsupported version", func(t *testing.T) {
		_, err := Load(writeConfig(t, `version: "2.0"`))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported version")
	})

	t.Run("rejects malformed clock strings", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
version: "1.0"
slots:
  morning_end: "25:00"
`))
		assert.Error(t, err)
	})

	t.Run("rejects out-of-order windows", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
version: "1.0"
slots:
  morning_end: "16:00"
  evening_start: "15:00"
`))
		assert.Error(t, err)
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
version: "1.0"
timezone: Mars/Olympus
`))
		assert.Error(t, err)
	})

	t.Run("rejects negative retry budget", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
version: "1.0"
transactions:
  attempts: -1
`))
		assert.Error(t, err)
	})
}

func TestLocationDefaultsToLocal(t *testing.T) {
	loc, err := Default().Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
