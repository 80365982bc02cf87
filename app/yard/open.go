package yard

import (
	"context"
	stderrors "errors"
	"os"
	"time"

	"railkit/errors"
	"railkit/logging"
	"railkit/messaging"
	"railkit/messaging/middleware"
	"railkit/messaging/transport/natsjetstream"
	"railkit/messaging/transport/redisstreams"
	synctransport "railkit/messaging/transport/sync"
	"railkit/patterns/retry"
	"railkit/storage/database"
	"railkit/storage/database/basic"
	"railkit/storage/depot"
)

// Open 按配置打开数据库、建表、启动事件传输并组装服务
//
// 返回的服务持有这些资源，使用完毕需调用 Close。
func Open(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.NewStdLoggerWithWriter("[railkit]", os.Stderr, cfg.LogLevel)

	policy := startPolicy(cfg, logger)

	var db *basic.DB
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		db, err = basic.Open(ctx, database.DBConfig{
			Driver:       cfg.DBDriver,
			DSN:          cfg.DBDSN,
			MaxOpenConns: cfg.DBMaxConns,
			PingTimeout:  cfg.PingTimeout,
		})
		return err
	}, policy)
	if err != nil {
		return nil, errors.WrapWithLog(ctx, err, errors.ErrCodeDatabase, "打开数据库失败",
			logging.String("driver", cfg.DBDriver))
	}
	closers := []func() error{db.Close}
	fail := func(err error) (*Service, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	d := depot.New(db, depot.WithLogger(logger))
	if err := d.Migrate(ctx); err != nil {
		return fail(err)
	}

	transport, err := newTransport(cfg, logger)
	if err != nil {
		return fail(err)
	}
	if err := retry.Do(ctx, transport.Start, policy); err != nil {
		_ = transport.Close()
		return fail(errors.WrapWithLog(ctx, err, errors.ErrCodeQueue, "启动事件传输失败",
			logging.String("transport", cfg.Transport)))
	}
	closers = append(closers, transport.Close)

	bus := messaging.NewMessageBus(transport)
	bus.Use(middleware.NewCorrelationMiddleware())
	if cfg.LogPublish {
		bus.Use(middleware.NewLoggingMiddleware(logger))
	}

	s := NewService(d, bus, WithLogger(logger))
	s.closers = closers
	logger.Info(ctx, "yard opened",
		logging.String("driver", cfg.DBDriver), logging.String("transport", cfg.Transport))
	return s, nil
}

// 连接失败按指数退避重试，上下文取消不重试
func startPolicy(cfg *Config, logger logging.Logger) retry.Config {
	policy := retry.DefaultConfig()
	policy.MaxAttempts = cfg.StartAttempts
	policy.Retryable = func(err error) bool {
		return !stderrors.Is(err, context.Canceled)
	}
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn(context.Background(), "start attempt failed",
			logging.Int("attempt", attempt), logging.Duration("backoff", delay), logging.Error(err))
	}
	return policy
}

func newTransport(cfg *Config, logger logging.Logger) (messaging.Transport, error) {
	switch cfg.Transport {
	case TransportNATS:
		return natsjetstream.NewTransport(natsjetstream.Config{
			URL:    cfg.NATSURL,
			Stream: cfg.NATSStream,
			Logger: logger,
		}), nil
	case TransportRedis:
		t, err := redisstreams.NewTransport(redisstreams.Config{
			Addr:   cfg.RedisAddr,
			MaxLen: cfg.RedisMaxLen,
			Logger: logger,
		})
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeQueue, "创建 Redis 传输失败")
		}
		return t, nil
	default:
		return synctransport.NewSyncTransport(), nil
	}
}
