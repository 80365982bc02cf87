// Package middleware 提供消息总线的发布中间件
package middleware

import (
	"context"

	"railkit/messaging"
)

type correlationKey struct{}

// WithCorrelationID 把关联 ID 放入上下文，同一次编组操作产生的事件共享它
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID 读取上下文中的关联 ID
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// CorrelationMiddleware 为缺少 correlation_id 的消息补齐：优先取上下文，否则用消息 ID
type CorrelationMiddleware struct{}

func NewCorrelationMiddleware() *CorrelationMiddleware { return &CorrelationMiddleware{} }

func (m *CorrelationMiddleware) Name() string { return "Correlation" }

func (m *CorrelationMiddleware) Handle(ctx context.Context, message messaging.IMessage, next messaging.HandlerFunc) error {
	if message == nil {
		return next(ctx, message)
	}
	md := message.GetMetadata()
	if id, _ := md[messaging.MetaCorrelationID].(string); id == "" {
		if fromCtx := CorrelationID(ctx); fromCtx != "" {
			md[messaging.MetaCorrelationID] = fromCtx
		} else {
			md[messaging.MetaCorrelationID] = message.GetID()
		}
	}
	return next(ctx, message)
}
