package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("PORT", "")
	t.Setenv("LOBBY_BACKEND", "")
	t.Setenv("LOBBY_URL", "")

	c, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, BackendMemory, c.Lobby.Backend)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 10*time.Minute, c.Game.RoomIdleTTL)
	assert.Equal(t, 64, c.Game.SendBuffer)
	assert.Empty(t, c.Lobby.URL)
	assert.True(t, c.Lobby.ResetOnStart)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOBBY_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://x@localhost/x")
	t.Setenv("ROOM_IDLE_TTL", "30s")
	t.Setenv("CONN_SEND_BUFFER", "8")
	t.Setenv("ROOM_CLEANUP_INTERVAL", "not-a-duration")

	c, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.HTTP.Addr)
	assert.Equal(t, "json", c.Log.Format)
	assert.Equal(t, BackendPostgres, c.Lobby.Backend)
	assert.Equal(t, 30*time.Second, c.Game.RoomIdleTTL)
	assert.Equal(t, 8, c.Game.SendBuffer)
	assert.Equal(t, time.Minute, c.Game.CleanupInterval, "bad values fall back to the default")
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOBBY_BACKEND", "")
	base, err := LoadFromEnv()
	require.NoError(t, err)

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "LOG_LEVEL"},
		{name: "bad backend", mutate: func(c *Config) { c.Lobby.Backend = "etcd" }, wantErr: "LOBBY_BACKEND"},
		{name: "postgres without url", mutate: func(c *Config) { c.Lobby.Backend = BackendPostgres }, wantErr: "DATABASE_URL"},
		{name: "redis without addr", mutate: func(c *Config) { c.Lobby.Backend = BackendRedis; c.Redis.Addr = "" }, wantErr: "REDIS_ADDR"},
		{name: "migrations without url", mutate: func(c *Config) { c.Postgres.RunMigrations = true }, wantErr: "RUN_MIGRATIONS"},
		{name: "default secret in prod", mutate: func(c *Config) { c.Env = "prod" }, wantErr: "LOBBY_SECRET"},
		{name: "custom secret in prod", mutate: func(c *Config) { c.Env = "prod"; c.Lobby.Secret = "s3cr3t" }},
		{name: "zero idle ttl", mutate: func(c *Config) { c.Game.RoomIdleTTL = 0 }, wantErr: "ROOM_IDLE_TTL"},
		{name: "zero send buffer", mutate: func(c *Config) { c.Game.SendBuffer = 0 }, wantErr: "CONN_SEND_BUFFER"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
