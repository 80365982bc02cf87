package messaging

import (
	"context"
)

// WildcardType 订阅全部消息类型
const WildcardType = "*"

// Transport 消息传输接口
type Transport interface {
	Publish(ctx context.Context, message IMessage) error
	PublishAll(ctx context.Context, messages []IMessage) error
	Subscribe(messageType string, handler IMessageHandler) error
	Unsubscribe(messageType string, handler IMessageHandler) error
	Start(ctx context.Context) error
	Close() error
	Stats() TransportStats
}

// TransportStats 传输层统计信息
type TransportStats struct {
	Running      bool     `json:"running"`
	HandlerCount int      `json:"handler_count"`
	MessageTypes []string `json:"message_types"`
	Published    int64    `json:"published"`
	Delivered    int64    `json:"delivered"`
	Failed       int64    `json:"failed"`
}

// MatchHandlers 返回精确匹配与通配的处理器，精确匹配在前
func MatchHandlers(handlers map[string][]IMessageHandler, messageType string) []IMessageHandler {
	exact := handlers[messageType]
	wildcard := handlers[WildcardType]
	if messageType == WildcardType {
		wildcard = nil
	}
	out := make([]IMessageHandler, 0, len(exact)+len(wildcard))
	out = append(out, exact...)
	return append(out, wildcard...)
}

// RemoveHandler 按身份移除处理器，返回是否找到
func RemoveHandler(handlers map[string][]IMessageHandler, messageType string, handler IMessageHandler) bool {
	list := handlers[messageType]
	for i, h := range list {
		if h == handler {
			list = append(list[:i:i], list[i+1:]...)
			if len(list) == 0 {
				delete(handlers, messageType)
			} else {
				handlers[messageType] = list
			}
			return true
		}
	}
	return false
}
