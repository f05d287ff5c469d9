package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "storefront", cfg.Server.Name)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, "mysql", cfg.Data.Database.Driver)
	assert.Contains(t, cfg.Data.Database.DSN, "loc=UTC")
	assert.NotContains(t, cfg.Data.Database.DSN, "loc=Local")
	assert.Equal(t, "memory", cfg.Verification.Store)
	assert.Equal(t, 24*time.Hour, cfg.Verification.TTL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireDuration)
	assert.Equal(t, 5, cfg.Catalog.LowStockThreshold)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
name = "shop"
environment = "test"

[server.http]
port = 9000

[server.grpc]
port = 9001

[data.database]
driver = "postgres"
dsn = "host=localhost user=shop dbname=shop"

[data.redis]
addr = "redis:6379"

[verification]
ttl = "30m"
`)
	t.Setenv("APP_SERVER_HTTP_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Server.Name)
	assert.Equal(t, 9100, cfg.Server.HTTP.Port)
	assert.Equal(t, "postgres", cfg.Data.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Verification.TTL)
	// 文件未出现的键保留默认值
	assert.Equal(t, "memory", cfg.Verification.Store)
	assert.Equal(t, 25, cfg.Data.Database.MaxOpenConns)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"bad driver", func(c *Config) { c.Data.Database.Driver = "sqlite" }, false},
		{"redis store without redis", func(c *Config) { c.Verification.Store = "redis" }, false},
		{"redis store with redis", func(c *Config) { c.Verification.Store = "redis"; c.Storefront.RedisEnabled = true }, true},
		{"kafka without brokers", func(c *Config) { c.Storefront.KafkaEnabled = true; c.MessageQueue.Kafka.Brokers = nil }, false},
		{"default secret in prod", func(c *Config) { c.Server.Environment = "prod" }, false},
		{"smtp without host", func(c *Config) { c.Mail.Driver = "smtp" }, false},
		{"zero ttl", func(c *Config) { c.Verification.TTL = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
