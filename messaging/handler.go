package messaging

import (
	"context"
)

// IMessageHandler 消息处理器接口
type IMessageHandler interface {
	// Handle 处理消息
	Handle(ctx context.Context, message IMessage) error

	// Type 返回处理器类型（用于日志和调试）
	Type() string
}

// HandlerFunc 中间件链中的基本执行单元
type HandlerFunc func(ctx context.Context, message IMessage) error

// FuncHandler 以函数实现的处理器
//
// 传输层按处理器身份退订，因此总是以指针形式使用。
type FuncHandler struct {
	name string
	fn   HandlerFunc
}

// NewFuncHandler 创建函数处理器
func NewFuncHandler(name string, fn HandlerFunc) *FuncHandler {
	return &FuncHandler{name: name, fn: fn}
}

func (h *FuncHandler) Handle(ctx context.Context, message IMessage) error {
	return h.fn(ctx, message)
}

func (h *FuncHandler) Type() string { return h.name }
