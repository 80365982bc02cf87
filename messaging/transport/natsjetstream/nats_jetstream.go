// Package natsjetstream 以 NATS JetStream 持久化并分发编组事件
package natsjetstream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"railkit/logging"
	"railkit/messaging"
)

// Config JetStream 传输配置
type Config struct {
	URL           string
	Stream        string
	SubjectPrefix string
	DurablePrefix string
	AckWait       time.Duration
	MaxAckPending int
	MaxDeliver    int
	Logger        logging.Logger
	Conn          *nats.Conn

	// 流参数
	Retention string // limits|interest|workqueue，默认 limits，保留事件历史供回放
	MaxAge    time.Duration
	Replicas  int
}

// Transport 基于 JetStream 的 messaging.Transport
type Transport struct {
	cfg      Config
	logger   logging.Logger
	conn     *nats.Conn
	js       nats.JetStreamContext
	ownsConn bool

	handlers map[string][]messaging.IMessageHandler
	subs     map[string]*nats.Subscription

	mu      sync.RWMutex
	running bool

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewTransport 创建 JetStream 传输
func NewTransport(cfg Config) *Transport {
	if cfg.Stream == "" {
		cfg.Stream = "RAILKIT"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "railkit."
	}
	if !strings.HasSuffix(cfg.SubjectPrefix, ".") {
		cfg.SubjectPrefix += "."
	}
	if cfg.DurablePrefix == "" {
		cfg.DurablePrefix = "railkit-"
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.MaxAckPending <= 0 {
		cfg.MaxAckPending = 1024
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger()
	}
	return &Transport{
		cfg:      cfg,
		logger:   cfg.Logger.WithFields(logging.String("component", "transport.nats")),
		handlers: make(map[string][]messaging.IMessageHandler),
		subs:     make(map[string]*nats.Subscription),
	}
}

// Publish 同步写入 JetStream，等待服务端确认
func (t *Transport) Publish(ctx context.Context, message messaging.IMessage) error {
	t.mu.RLock()
	js := t.js
	running := t.running
	t.mu.RUnlock()
	if !running || js == nil {
		return errors.New("nats transport not running")
	}
	data, err := messaging.Marshal(message)
	if err != nil {
		return err
	}
	subject := t.subjectName(message.GetType())
	// 以消息 ID 去重，重试发布不会产生重复事件
	if _, err := js.Publish(subject, data, nats.Context(ctx), nats.MsgId(message.GetID())); err != nil {
		return fmt.Errorf("publish %s to %s: %w", message.GetID(), subject, err)
	}
	t.published.Add(1)
	return nil
}

// PublishAll 逐条发布以保持事件顺序
func (t *Transport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, msg := range messages {
		if err := t.Publish(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for message type %s", messageType)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[messageType] = append(t.handlers[messageType], handler)
	if t.running {
		return t.subscribeLocked(messageType)
	}
	return nil
}

func (t *Transport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	messaging.RemoveHandler(t.handlers, messageType, handler)
	if len(t.handlers[messageType]) == 0 {
		if sub, ok := t.subs[messageType]; ok {
			_ = sub.Drain()
			delete(t.subs, messageType)
		}
	}
	return nil
}

func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("nats transport already running")
	}
	if err := t.ensureConnection(); err != nil {
		return err
	}
	if err := t.ensureStream(); err != nil {
		return err
	}
	for mt := range t.handlers {
		if err := t.subscribeLocked(mt); err != nil {
			return err
		}
	}
	t.running = true
	t.logger.Info(ctx, "nats transport started",
		logging.String("stream", t.cfg.Stream), logging.String("subjects", t.cfg.SubjectPrefix+">"))
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	for mt, sub := range t.subs {
		_ = sub.Drain()
		delete(t.subs, mt)
	}
	if t.ownsConn && t.conn != nil {
		t.conn.Close()
	}
	t.conn = nil
	t.js = nil
	return nil
}

func (t *Transport) Stats() messaging.TransportStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	handlerCount := 0
	types := make([]string, 0, len(t.handlers))
	for mt, hs := range t.handlers {
		handlerCount += len(hs)
		types = append(types, mt)
	}
	sort.Strings(types)
	return messaging.TransportStats{
		Running:      t.running,
		HandlerCount: handlerCount,
		MessageTypes: types,
		Published:    t.published.Load(),
		Delivered:    t.delivered.Load(),
		Failed:       t.failed.Load(),
	}
}

func (t *Transport) ensureConnection() error {
	if t.conn != nil && t.js != nil {
		return nil
	}
	if t.cfg.Conn != nil {
		t.conn = t.cfg.Conn
	} else {
		url := t.cfg.URL
		if url == "" {
			url = nats.DefaultURL
		}
		conn, err := nats.Connect(url, nats.Name("railkit"))
		if err != nil {
			return fmt.Errorf("connect nats %s: %w", url, err)
		}
		t.conn = conn
		t.ownsConn = true
	}
	js, err := t.conn.JetStream()
	if err != nil {
		return err
	}
	t.js = js
	return nil
}

func (t *Transport) ensureStream() error {
	_, err := t.js.StreamInfo(t.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) && !strings.Contains(err.Error(), "stream not found") {
		return err
	}
	_, err = t.js.AddStream(streamConfig(t.cfg))
	return err
}

// streamConfig 由传输配置组装流配置
func streamConfig(cfg Config) *nats.StreamConfig {
	retention := nats.LimitsPolicy
	switch strings.ToLower(cfg.Retention) {
	case "interest":
		retention = nats.InterestPolicy
	case "workqueue":
		retention = nats.WorkQueuePolicy
	}
	sc := &nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.SubjectPrefix + ">"},
		Retention: retention,
		Storage:   nats.FileStorage,
	}
	if cfg.MaxAge > 0 {
		sc.MaxAge = cfg.MaxAge
	}
	if cfg.Replicas > 0 {
		sc.Replicas = cfg.Replicas
	}
	return sc
}

func (t *Transport) subscribeLocked(messageType string) error {
	if _, exists := t.subs[messageType]; exists {
		return nil
	}
	subject := t.subjectName(messageType)
	durable := t.durableName(messageType)
	sub, err := t.js.QueueSubscribe(subject, durable, t.handleMessage(messageType),
		nats.ManualAck(),
		nats.Durable(durable),
		nats.AckWait(t.cfg.AckWait),
		nats.MaxAckPending(t.cfg.MaxAckPending),
		nats.MaxDeliver(t.cfg.MaxDeliver))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	t.subs[messageType] = sub
	return nil
}

func (t *Transport) handleMessage(subscribed string) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx := context.Background()
		decoded, err := messaging.Unmarshal(msg.Data)
		if err != nil {
			// 无法解码的消息重投也无意义
			t.logger.Warn(ctx, "decode nats message failed", logging.String("subject", msg.Subject), logging.Error(err))
			_ = msg.Term()
			return
		}
		if decoded.Type == "" {
			decoded.Type = strings.TrimPrefix(msg.Subject, t.cfg.SubjectPrefix)
		}
		if err := t.dispatch(ctx, subscribed, decoded); err != nil {
			t.logger.Warn(ctx, "handler failed, message will be redelivered",
				logging.String("message_id", decoded.ID), logging.Error(err))
			_ = msg.Nak()
			return
		}
		if err := msg.Ack(); err != nil {
			t.logger.Warn(ctx, "nats ack failed", logging.Error(err))
		}
	}
}

// dispatch 只调用本订阅登记的处理器；通配订阅有独立的 durable
func (t *Transport) dispatch(ctx context.Context, subscribed string, message messaging.IMessage) error {
	t.mu.RLock()
	handlers := append([]messaging.IMessageHandler(nil), t.handlers[subscribed]...)
	t.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, message); err != nil {
			t.failed.Add(1)
			errs = append(errs, err)
			continue
		}
		t.delivered.Add(1)
	}
	return errors.Join(errs...)
}

func (t *Transport) subjectName(messageType string) string {
	if messageType == messaging.WildcardType {
		return t.cfg.SubjectPrefix + ">"
	}
	return t.cfg.SubjectPrefix + messageType
}

// durableName 消费者名不允许包含 '.' 与 '*'
func (t *Transport) durableName(messageType string) string {
	name := messageType
	if name == messaging.WildcardType {
		name = "all"
	}
	return t.cfg.DurablePrefix + strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(name)
}
