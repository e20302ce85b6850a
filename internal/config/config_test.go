package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svivm.conf")
	body := "; comment\n" +
		"lock_retry_interval = 5ms\n" +
		"worker_poll_interval = 200ms\n" +
		"storage_dsn = sqlite:/tmp/svi.db\n" +
		"worker_count = 4\n" +
		"filter.region = us-east\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5*time.Millisecond, cfg.LockRetryInterval)
	require.Equal(t, 200*time.Millisecond, cfg.WorkerPollInterval)
	require.Equal(t, "sqlite:/tmp/svi.db", cfg.StorageDSN)
	require.Equal(t, 4, cfg.WorkerCount)
	require.Equal(t, "us-east", cfg.Filters["region"])
}

func TestDefaultHasSaneKnobs(t *testing.T) {
	cfg := Default()
	require.Equal(t, 1, cfg.WorkerCount)
	require.Positive(t, cfg.LockRetryInterval)
	require.Positive(t, cfg.WorkerPollInterval)
}
