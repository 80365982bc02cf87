package yard

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railkit/errors"
	"railkit/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, TransportSync, cfg.Transport)
	assert.Equal(t, logging.InfoLevel, cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFrom(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		invalid bool
	}{
		{
			name: "空环境使用默认值",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "postgres 与 nats",
			env: map[string]string{
				EnvDBDriver:   "pgx",
				EnvDBDSN:      "postgres://yard@localhost/railkit",
				EnvTransport:  "nats",
				EnvNATSURL:    "nats://nats:4222",
				EnvLogLevel:   "debug",
				EnvDBMaxConns: "8",
				EnvStartTries: "5",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "pgx", cfg.DBDriver)
				assert.Equal(t, "postgres://yard@localhost/railkit", cfg.DBDSN)
				assert.Equal(t, TransportNATS, cfg.Transport)
				assert.Equal(t, "nats://nats:4222", cfg.NATSURL)
				assert.Equal(t, logging.DebugLevel, cfg.LogLevel)
				assert.Equal(t, 8, cfg.DBMaxConns)
				assert.Equal(t, 5, cfg.StartAttempts)
			},
		},
		{
			name: "redis 参数",
			env:  map[string]string{EnvTransport: "redis", EnvRedisAddr: "redis:6379", EnvRedisMaxLen: "5000", EnvPingTimeout: "500ms", EnvLogPublish: "true"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis:6379", cfg.RedisAddr)
				assert.Equal(t, int64(5000), cfg.RedisMaxLen)
				assert.Equal(t, 500*time.Millisecond, cfg.PingTimeout)
				assert.True(t, cfg.LogPublish)
			},
		},
		{name: "未知驱动", env: map[string]string{EnvDBDriver: "mysql"}, invalid: true},
		{name: "未知传输", env: map[string]string{EnvTransport: "kafka"}, invalid: true},
		{name: "连接数非数字", env: map[string]string{EnvDBMaxConns: "many"}, invalid: true},
		{name: "负连接数", env: map[string]string{EnvDBMaxConns: "-1"}, invalid: true},
		{name: "尝试次数为负", env: map[string]string{EnvStartTries: "-2"}, invalid: true},
		{name: "超时格式错误", env: map[string]string{EnvPingTimeout: "soon"}, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := configFrom(func(key string) (string, bool) {
				v, ok := tt.env[key]
				return v, ok
			})
			if tt.invalid {
				assert.Nil(t, cfg)
				assert.True(t, errors.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

// 环境变量覆盖 .env 文件中的值
func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yard.env")
	content := "RAILKIT_DB_DSN=file:yard.db\nRAILKIT_TRANSPORT=redis\n# comment\nRAILKIT_LOG_LEVEL=warn\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(EnvLogLevel, "error")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file:yard.db", cfg.DBDSN)
	assert.Equal(t, TransportRedis, cfg.Transport)
	assert.Equal(t, logging.ErrorLevel, cfg.LogLevel)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	assert.True(t, errors.IsErrorCode(err, errors.ErrCodeInvalidInput))
}
