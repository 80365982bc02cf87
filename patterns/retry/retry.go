// Package retry 提供带指数退避的重试执行，用于连接数据库与事件传输等启动步骤。
package retry

import (
	"context"
	"math"
	"time"
)

// Operation 可重试的操作
type Operation func(ctx context.Context) error

// Config 重试配置
type Config struct {
	MaxAttempts   int           // 最大尝试次数（含首次），小于 1 按 1 处理
	InitialDelay  time.Duration // 首次退避
	BackoffFactor float64       // 退避倍数
	MaxDelay      time.Duration // 退避上限

	// Retryable 为 nil 时所有错误都重试
	Retryable func(err error) bool
	// OnRetry 在每次退避前调用
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig 三次尝试，200ms 起步，上限 2s
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      2 * time.Second,
	}
}

// Delay 返回第 attempt 次失败后的退避时长（attempt 从 1 开始）
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := c.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := time.Duration(float64(c.InitialDelay) * math.Pow(factor, float64(attempt-1)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do 执行 op，失败时按配置退避重试
//
// 返回最后一次的错误；不可重试的错误立即返回；上下文取消时返回 ctx.Err()。
func Do(ctx context.Context, op Operation, cfg Config) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := cfg.Delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}
