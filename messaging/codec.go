package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope 跨进程传输时的线上格式，时间戳为 Unix 纳秒
type envelope struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	Payload   json.RawMessage        `json:"payload"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Marshal 编码消息，负载先行序列化为 JSON
func Marshal(message IMessage) ([]byte, error) {
	payload, err := MarshalPayload(message)
	if err != nil {
		return nil, err
	}
	metadata := message.GetMetadata()
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return json.Marshal(envelope{
		ID:        message.GetID(),
		Type:      message.GetType(),
		Timestamp: StampOf(message).UnixNano(),
		Payload:   payload,
		Metadata:  metadata,
	})
}

// Unmarshal 解码消息，负载保留为 json.RawMessage，由订阅方通过 DecodePayload 取用
func Unmarshal(data []byte) (*Message, error) {
	var wire envelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if wire.Metadata == nil {
		wire.Metadata = make(map[string]interface{})
	}
	var payload interface{}
	if len(wire.Payload) > 0 && string(wire.Payload) != "null" {
		payload = wire.Payload
	}
	return &Message{
		ID:        wire.ID,
		Type:      wire.Type,
		Timestamp: time.Unix(0, wire.Timestamp),
		Payload:   payload,
		Metadata:  wire.Metadata,
	}, nil
}

// MarshalPayload 序列化负载；已是 JSON 的负载原样返回
func MarshalPayload(message IMessage) (json.RawMessage, error) {
	switch p := message.GetPayload().(type) {
	case json.RawMessage:
		return p, nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode payload of %s: %w", message.GetID(), err)
		}
		return data, nil
	}
}

// StampOf 消息时间戳，缺省时取当前时间
func StampOf(message IMessage) time.Time {
	ts := message.GetTimestamp()
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}
