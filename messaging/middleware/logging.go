package middleware

import (
	"context"
	"time"

	"railkit/logging"
	"railkit/messaging"
)

// LoggingMiddleware 记录每条消息的发布结果与耗时
type LoggingMiddleware struct {
	logger logging.Logger
}

// NewLoggingMiddleware 创建日志中间件，logger 为空时使用全局日志器
func NewLoggingMiddleware(logger logging.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &LoggingMiddleware{logger: logger.WithFields(logging.String("component", "messaging.bus"))}
}

func (m *LoggingMiddleware) Name() string { return "Logging" }

func (m *LoggingMiddleware) Handle(ctx context.Context, message messaging.IMessage, next messaging.HandlerFunc) error {
	start := time.Now()
	err := next(ctx, message)
	fields := []logging.Field{
		logging.String("message_id", message.GetID()),
		logging.String("message_type", message.GetType()),
		logging.Duration("took", time.Since(start)),
	}
	if trainID, ok := message.GetMetadata()[messaging.MetaTrainID].(string); ok {
		fields = append(fields, logging.String("train_id", trainID))
	}
	if err != nil {
		m.logger.Error(ctx, "publish failed", append(fields, logging.Error(err))...)
		return err
	}
	m.logger.Debug(ctx, "published", fields...)
	return nil
}
