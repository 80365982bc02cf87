// Package sync 提供同步的进程内传输：发布即在调用方 goroutine 中依次调用处理器
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"railkit/messaging"
)

// SyncTransport 同步内存传输
type SyncTransport struct {
	handlers map[string][]messaging.IMessageHandler
	mutex    sync.RWMutex
	running  bool

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewSyncTransport 创建同步传输
func NewSyncTransport() *SyncTransport {
	return &SyncTransport{
		handlers: make(map[string][]messaging.IMessageHandler),
	}
}

// Publish 同步投递给精确匹配与通配的处理器；单个处理器失败不影响其余处理器
func (t *SyncTransport) Publish(ctx context.Context, message messaging.IMessage) error {
	t.mutex.RLock()
	if !t.running {
		t.mutex.RUnlock()
		return fmt.Errorf("sync transport is not running")
	}
	handlers := messaging.MatchHandlers(t.handlers, message.GetType())
	t.mutex.RUnlock()

	t.published.Add(1)
	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, message); err != nil {
			t.failed.Add(1)
			errs = append(errs, fmt.Errorf("%s: %w", handler.Type(), err))
			continue
		}
		t.delivered.Add(1)
	}
	if len(errs) > 0 {
		return fmt.Errorf("message %s handled with %d errors: %w", message.GetID(), len(errs), errors.Join(errs...))
	}
	return nil
}

// PublishAll 按顺序发布，遇错即止
func (t *SyncTransport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, message := range messages {
		if err := t.Publish(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe 订阅消息处理器
func (t *SyncTransport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for message type %s", messageType)
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handlers[messageType] = append(t.handlers[messageType], handler)
	return nil
}

// Unsubscribe 取消订阅消息处理器
func (t *SyncTransport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !messaging.RemoveHandler(t.handlers, messageType, handler) {
		return fmt.Errorf("handler not found for message type %s", messageType)
	}
	return nil
}

// Start 启动传输层
func (t *SyncTransport) Start(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.running {
		return fmt.Errorf("sync transport is already running")
	}
	t.running = true
	return nil
}

// Close 关闭传输层，重复关闭无副作用
func (t *SyncTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.running = false
	return nil
}

// Stats 返回统计信息
func (t *SyncTransport) Stats() messaging.TransportStats {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	handlerCount := 0
	messageTypes := make([]string, 0, len(t.handlers))
	for mt, h := range t.handlers {
		messageTypes = append(messageTypes, mt)
		handlerCount += len(h)
	}
	sort.Strings(messageTypes)

	return messaging.TransportStats{
		Running:      t.running,
		HandlerCount: handlerCount,
		MessageTypes: messageTypes,
		Published:    t.published.Load(),
		Delivered:    t.delivered.Load(),
		Failed:       t.failed.Load(),
	}
}
