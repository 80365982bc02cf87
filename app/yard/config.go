package yard

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"railkit/errors"
	"railkit/logging"
	"railkit/validation"
)

// 传输方式
const (
	TransportSync  = "sync"
	TransportNATS  = "nats"
	TransportRedis = "redis"
)

// 环境变量
const (
	EnvDBDriver    = "RAILKIT_DB_DRIVER"
	EnvDBDSN       = "RAILKIT_DB_DSN"
	EnvTransport   = "RAILKIT_TRANSPORT"
	EnvNATSURL     = "RAILKIT_NATS_URL"
	EnvNATSStream  = "RAILKIT_NATS_STREAM"
	EnvRedisAddr   = "RAILKIT_REDIS_ADDR"
	EnvRedisMaxLen = "RAILKIT_REDIS_MAXLEN"
	EnvLogLevel    = "RAILKIT_LOG_LEVEL"
	EnvDBMaxConns  = "RAILKIT_DB_MAX_CONNS"
	EnvPingTimeout = "RAILKIT_DB_PING_TIMEOUT"
	EnvLogPublish  = "RAILKIT_LOG_PUBLISH"
	EnvStartTries  = "RAILKIT_START_ATTEMPTS"
)

// Config 调车场服务配置
type Config struct {
	// 数据库
	DBDriver    string // sqlite | pgx
	DBDSN       string
	DBMaxConns  int
	PingTimeout time.Duration

	// 打开数据库与启动传输的尝试次数
	StartAttempts int

	// 事件传输
	Transport   string // sync | nats | redis
	NATSURL     string
	NATSStream  string
	RedisAddr   string
	RedisMaxLen int64

	// 日志
	LogLevel   logging.Level
	LogPublish bool // 逐条记录事件发布
}

// DefaultConfig 默认配置：内存 sqlite 与同步传输
func DefaultConfig() *Config {
	return &Config{
		DBDriver:      "sqlite",
		DBDSN:         "file::memory:",
		DBMaxConns:    1,
		PingTimeout:   3 * time.Second,
		StartAttempts: 3,
		Transport:     TransportSync,
		NATSURL:       "nats://127.0.0.1:4222",
		NATSStream:    "RAILKIT",
		RedisAddr:     "127.0.0.1:6379",
		LogLevel:      logging.InfoLevel,
	}
}

// LoadConfig 依次读取 .env 文件与环境变量，环境变量优先
//
// 未指定文件时读取当前目录的 .env（不存在则忽略）；显式指定的文件必须存在。
func LoadConfig(files ...string) (*Config, error) {
	values := map[string]string{}
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		read, err := godotenv.Read(files...)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeInvalidInput, "读取配置文件失败").
				WithContext("files", strings.Join(files, ","))
		}
		values = read
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}
	return configFrom(lookup)
}

func configFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvDBDriver, &cfg.DBDriver)
	str(EnvDBDSN, &cfg.DBDSN)
	str(EnvTransport, &cfg.Transport)
	str(EnvNATSURL, &cfg.NATSURL)
	str(EnvNATSStream, &cfg.NATSStream)
	str(EnvRedisAddr, &cfg.RedisAddr)

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = logging.ParseLevel(v)
	}
	if v, ok := lookup(EnvDBMaxConns); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, invalidValue(EnvDBMaxConns, v, err)
		}
		cfg.DBMaxConns = n
	}
	if v, ok := lookup(EnvStartTries); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, invalidValue(EnvStartTries, v, err)
		}
		cfg.StartAttempts = n
	}
	if v, ok := lookup(EnvRedisMaxLen); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, invalidValue(EnvRedisMaxLen, v, err)
		}
		cfg.RedisMaxLen = n
	}
	if v, ok := lookup(EnvPingTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, invalidValue(EnvPingTimeout, v, err)
		}
		cfg.PingTimeout = d
	}
	if v, ok := lookup(EnvLogPublish); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, invalidValue(EnvLogPublish, v, err)
		}
		cfg.LogPublish = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	return validation.First(
		validation.ValidateEnum(c.DBDriver, EnvDBDriver, []string{"sqlite", "pgx"}),
		validation.ValidateRequired(c.DBDSN, EnvDBDSN),
		validation.ValidateNonNegative(c.DBMaxConns, EnvDBMaxConns),
		validation.ValidateNonNegative(c.StartAttempts, EnvStartTries),
		validation.ValidateEnum(c.Transport, EnvTransport, []string{TransportSync, TransportNATS, TransportRedis}),
	)
}

func invalidValue(key, value string, cause error) error {
	return errors.WrapError(cause, errors.ErrCodeValidation, "配置取值无效").
		WithContext("field", key).
		WithContext("value", value)
}
