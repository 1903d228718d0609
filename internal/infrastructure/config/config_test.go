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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: test-secret\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 7200*time.Second, cfg.Seckill.CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.Seckill.LockoutWindow)
	assert.Equal(t, 10*time.Minute, cfg.Seckill.WarmLeadTime)
	assert.Equal(t, 4, cfg.Seckill.WarmConcurrency)
	assert.Equal(t, "seckill.events", cfg.MQ.Exchange)
	assert.Equal(t, uint32(5), cfg.CircuitBreaker.FailureThreshold)
}

func TestLoadFile_RepositoryConfig(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "seckill", cfg.Database.DBName)
	assert.Equal(t, "root:root@tcp(localhost:3306)/seckill?charset=utf8mb4&parseTime=true&loc=Asia%2FShanghai", cfg.Database.DSN())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 30*time.Second, cfg.Seckill.ScanInterval)
}

func TestLoadFile_EnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\njwt:\n  secret: test-secret\n")
	t.Setenv("SECKILL_SERVER_PORT", "9090")
	t.Setenv("SECKILL_SECKILL_WARM_CONCURRENCY", "8")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Seckill.WarmConcurrency)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"缺少JWT密钥", "server:\n  port: 8080\n"},
		{"非法端口", "server:\n  port: 70000\njwt:\n  secret: s\n"},
		{"生产环境默认密钥", "server:\n  mode: release\njwt:\n  secret: your-secret-key-change-in-production\n"},
		{"预热提前量超过锁定窗口", "jwt:\n  secret: s\nseckill:\n  warm_lead_time: 40m\n"},
		{"启用MQ但未配置地址", "jwt:\n  secret: s\nmq:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}
