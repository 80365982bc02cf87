package consist

// EventType 编组领域事件类型
type EventType string

const (
	EventTrainFormed      EventType = "consist.train.formed"
	EventElementCoupled   EventType = "consist.element.coupled"
	EventElementUncoupled EventType = "consist.element.uncoupled"
	EventTrainDissolved   EventType = "consist.train.dissolved"
)

// Event 编组领域事件
//
// 每次成功的编组操作记录一条事件，Version 为事件发生后列车的版本号。
// 事件仅用于通知，列车状态本身以序列为准。
type Event struct {
	Type     EventType   `json:"type"`
	TrainID  string      `json:"train_id"`
	Version  uint64      `json:"version"`
	Serial   string      `json:"serial,omitempty"`
	Kind     ElementKind `json:"kind,omitempty"`
	Position int         `json:"position"`
	Length   int         `json:"length"`
}

// record 追加事件并推进版本号，调用方需持有写锁
func (t *Train) record(typ EventType, e Element, position int) {
	t.version++
	evt := Event{
		Type:     typ,
		TrainID:  t.id,
		Version:  t.version,
		Position: position,
		Length:   len(t.elements),
	}
	if !isNil(e) {
		evt.Serial = e.Serial().String()
		evt.Kind = e.Kind()
	}
	t.events = append(t.events, evt)
}

// PendingEvents 返回尚未发布的领域事件副本
func (t *Train) PendingEvents() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// ClearEvents 清空未发布事件（发布成功后由应用层调用）
func (t *Train) ClearEvents() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}
