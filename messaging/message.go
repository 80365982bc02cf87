// Package messaging 定义编组事件在进程内外传递所用的消息抽象
package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// 元数据键
const (
	MetaTrainID       = "train_id"
	MetaVersion       = "version"
	MetaCorrelationID = "correlation_id"
)

// IMessage 消息接口
type IMessage interface {
	GetID() string
	GetType() string
	GetTimestamp() time.Time
	GetPayload() interface{}
	GetMetadata() map[string]interface{}
}

// Message 消息基础实现
type Message struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   interface{}            `json:"payload"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (m *Message) GetID() string           { return m.ID }
func (m *Message) GetType() string         { return m.Type }
func (m *Message) GetTimestamp() time.Time { return m.Timestamp }
func (m *Message) GetPayload() interface{} { return m.Payload }

// GetMetadata 获取元数据，必要时惰性初始化
func (m *Message) GetMetadata() map[string]interface{} {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	return m.Metadata
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key string, value interface{}) {
	m.GetMetadata()[key] = value
}

// NewMessage 创建新消息
func NewMessage(messageID, messageType string, payload interface{}) *Message {
	return &Message{
		ID:        messageID,
		Type:      messageType,
		Timestamp: time.Now(),
		Payload:   payload,
		Metadata:  make(map[string]interface{}),
	}
}

// DecodePayload 将消息负载解码到 v
//
// 进程内传递时负载保持原始类型，经过网络传输后为 json.RawMessage，两种情况统一按 JSON 处理。
func DecodePayload(message IMessage, v interface{}) error {
	var raw []byte
	switch p := message.GetPayload().(type) {
	case nil:
		return fmt.Errorf("message %s has no payload", message.GetID())
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode payload of %s: %w", message.GetID(), err)
		}
		raw = data
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload of %s: %w", message.GetID(), err)
	}
	return nil
}
