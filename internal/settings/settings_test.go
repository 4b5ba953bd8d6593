package settings

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/itinera/kv"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, BackendDynamoDB, cfg.Backend)
	assert.Equal(t, "itinera", cfg.DynamoDB.Table)
	assert.Equal(t, 600*time.Second, cfg.Store.PendingDeleteTTL)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "itinera.yaml", `
backend: pebble
pebble_path: /var/lib/itinera
dynamodb:
  table: trips-prod
store:
  pending_delete_ttl: 15m
  scan_page_size: 250
  patch:
    max_updates: 20
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPebble, cfg.Backend)
	assert.Equal(t, "/var/lib/itinera", cfg.PebblePath)
	assert.Equal(t, "trips-prod", cfg.DynamoDB.Table)
	assert.Equal(t, 15*time.Minute, cfg.Store.PendingDeleteTTL)
	assert.Equal(t, 250, cfg.Store.ScanPageSize)
	assert.Equal(t, 20, cfg.Store.Patch.MaxUpdates)
	assert.Equal(t, 10, cfg.Store.Patch.MaxDepth, "unset fields keep their defaults")
	assert.Equal(t, 8, cfg.Store.SummaryConcurrency)
	assert.Equal(t, LogConfig{Level: "debug", Format: "text"}, cfg.Log)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "itinera.yaml", "dynamodb:\n  table: from-file\n")
	t.Setenv("ITINERA_TABLE", "from-env")
	t.Setenv("ITINERA_CONSISTENT_READ", "true")
	t.Setenv("ITINERA_PENDING_DELETE_TTL", "90s")
	t.Setenv("ITINERA_SUMMARY_CONCURRENCY", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DynamoDB.Table)
	assert.True(t, cfg.DynamoDB.ConsistentRead)
	assert.Equal(t, 90*time.Second, cfg.Store.PendingDeleteTTL)
	assert.Equal(t, 2, cfg.Store.SummaryConcurrency)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
		want string
	}{
		{"unknown backend", "backend: redis\n", nil, "unknown backend"},
		{"pebble without path", "backend: pebble\n", nil, "requires pebble_path"},
		{"bad level", "log:\n  level: loud\n", nil, "invalid log level"},
		{"bad format", "log:\n  format: xml\n", nil, "unknown log format"},
		{"bad yaml", "backend: [\n", nil, "parse config"},
		{"bad bool", "", map[string]string{"ITINERA_CONSISTENT_READ": "maybe"}, "ITINERA_CONSISTENT_READ"},
		{"bad duration", "", map[string]string{"ITINERA_PENDING_DELETE_TTL": "soon"}, "ITINERA_PENDING_DELETE_TTL"},
		{"bad int", "", map[string]string{"ITINERA_SCAN_PAGE_SIZE": "lots"}, "ITINERA_SCAN_PAGE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, "itinera.yaml", tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")), "missing file is fine")

	// Register cleanup for the variables the file sets.
	t.Setenv("ITINERA_BACKEND", "")
	t.Setenv("ITINERA_LOG_LEVEL", "warn")
	os.Unsetenv("ITINERA_BACKEND")

	path := writeFile(t, ".env", "ITINERA_BACKEND=memory\nITINERA_LOG_LEVEL=debug\n")
	require.NoError(t, LoadDotEnv(path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "warn", cfg.Log.Level, "existing variables win over the file")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "tripID", "trip-1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"tripID":"trip-1"`)

	buf.Reset()
	logger, err = NewLogger(&buf, LogConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	logger.Debug("details", "tenantPrefix", "kim/")
	assert.True(t, strings.Contains(buf.String(), "tenantPrefix=kim/"), buf.String())

	_, err = NewLogger(&buf, LogConfig{Format: "xml"})
	assert.Error(t, err)
	_, err = NewLogger(&buf, LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	mem, closeMem, err := OpenBackend(ctx, Config{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &kv.Memory{}, mem)
	assert.NoError(t, closeMem())

	dir := t.TempDir()
	db, closeDB, err := OpenBackend(ctx, Config{Backend: BackendPebble, PebblePath: dir}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, db.Put(ctx, "kim/trip-1", []byte(`{}`), kv.PutOptions{}))
	require.NoError(t, closeDB())

	_, closeBad, err := OpenBackend(ctx, Config{Backend: "redis"}, nil)
	assert.Error(t, err)
	assert.NotNil(t, closeBad)
}
