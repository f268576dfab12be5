package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
periods:
  heat_cycle_days: 22
  service_window_days: 2

store:
  driver: postgres
  dsn: postgres://farm:secret@db/breeding?sslmode=disable
  max_open_conns: 20

lock:
  driver: redis
  redis:
    addr: redis:6379
    db: 2
  ttl: 45s

scheduler:
  enabled: false
  timezone: America/Sao_Paulo
  heat_expiry: "30 1 * * *"
  notifications: "-"

log:
  level: debug
  format: console

http:
  addr: ":9090"
  cors_origins: ["https://farm.example.com"]
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	require.NoError(t, err)

	assert.Equal(t, 22, cfg.Periods.HeatCycleDays)
	assert.Equal(t, 2, cfg.Periods.ServiceWindowDays)
	assert.Equal(t, 114, cfg.Periods.GestationDays, "unset periods fall back to defaults")

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 20, cfg.Store.MaxOpenConns)
	assert.Equal(t, 5, cfg.Store.MaxIdleConns)

	assert.Equal(t, LockRedis, cfg.Lock.Driver)
	assert.Equal(t, "redis:6379", cfg.Lock.Redis.Addr)
	assert.Equal(t, 2, cfg.Lock.Redis.DB)
	assert.Equal(t, 45*time.Second, cfg.Lock.TTL)

	assert.False(t, cfg.Scheduler.IsEnabled())
	assert.Equal(t, "30 1 * * *", cfg.Scheduler.Spec("heat-expiry"))
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.Spec("weaning"))
	assert.Empty(t, cfg.Scheduler.Spec("notifications"))

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, []string{"https://farm.example.com"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "breeding.db", cfg.Store.DSN)
	assert.Equal(t, LockLocal, cfg.Lock.Driver)
	assert.True(t, cfg.Scheduler.IsEnabled())
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, "0 */6 * * *", cfg.Scheduler.Spec("notifications"))
	assert.Equal(t, 21, cfg.Periods.HeatCycleDays)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDBDriver, "postgres")
	t.Setenv(EnvDBDSN, "postgres://env/db")
	t.Setenv(EnvHTTPAddr, ":7000")

	cfg, err := Parse([]byte("store:\n  driver: sqlite\n  dsn: farm.db\n"))
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://env/db", cfg.Store.DSN)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown driver", "store:\n  driver: mysql\n", "store.driver"},
		{"postgres without dsn", "store:\n  driver: postgres\n", "store.dsn is required"},
		{"bad lock", "lock:\n  driver: etcd\n", "lock.driver"},
		{"bad timezone", "scheduler:\n  timezone: Mars/Olympus\n", "scheduler.timezone"},
		{"bad cron", "scheduler:\n  weaning: every morning\n", "scheduler.weaning"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"inverted periods", "periods:\n  heat_cycle_days: 10\n", "min_heat_interval_days cannot exceed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("stroe:\n  driver: sqlite\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: parse")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":8181\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8181", cfg.HTTP.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
}
