package consist

import (
	"fmt"
	"slices"
	"strings"
)

const (
	// PassengerMass 每位乘客的平均质量（kg），用于把载客数折算为载重
	PassengerMass = 75
	// PassengersPerConductor 每名乘务员负责的乘客数
	PassengersPerConductor = 50
)

// Metrics 列车指标快照，所有值均由当前序列即时计算
type Metrics struct {
	Elements           int  `json:"elements"`
	Locomotives        int  `json:"locomotives"`
	Wagons             int  `json:"wagons"`
	Length             int  `json:"length"`
	EmptyWeight        int  `json:"empty_weight"`
	MaxPassengerCount  int  `json:"max_passenger_count"`
	MaxGoodsWeight     int  `json:"max_goods_weight"`
	MaxLoadWeight      int  `json:"max_load_weight"`
	MaxWeight          int  `json:"max_weight"`
	TotalPower         int  `json:"total_power"`
	Operational        bool `json:"operational"`
	RequiredConductors int  `json:"required_conductors"`
}

// ComputeMetrics 对任意车辆序列计算指标
func ComputeMetrics(elements []Element) Metrics {
	var m Metrics
	for _, e := range elements {
		m.Elements++
		m.Length += e.Length()
		m.EmptyWeight += e.EmptyWeight()
		m.MaxPassengerCount += e.MaxPassengerCount()
		m.MaxGoodsWeight += e.MaxGoodsWeight()
		if l, ok := e.(*Locomotive); ok {
			m.Locomotives++
			m.TotalPower += l.Power()
		} else {
			m.Wagons++
		}
	}
	m.MaxLoadWeight = m.MaxPassengerCount*PassengerMass + m.MaxGoodsWeight
	m.MaxWeight = m.EmptyWeight + m.MaxLoadWeight
	// 有机车且牵引能力不小于满载总重即可开行；空序列（解编后）不可开行
	m.Operational = m.Locomotives > 0 && m.TotalPower >= m.MaxWeight
	m.RequiredConductors = requiredConductors(m.MaxPassengerCount)
	return m
}

// requiredConductors 有乘客时至少一名，之后每满 50 名乘客一名
func requiredConductors(passengers int) int {
	if passengers <= 0 {
		return 0
	}
	return max(1, passengers/PassengersPerConductor)
}

// Metrics 计算当前指标快照
func (t *Train) Metrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ComputeMetrics(t.elements)
}

func (t *Train) EmptyWeight() int        { return t.Metrics().EmptyWeight }
func (t *Train) MaxPassengerCount() int  { return t.Metrics().MaxPassengerCount }
func (t *Train) MaxGoodsWeight() int     { return t.Metrics().MaxGoodsWeight }
func (t *Train) MaxLoadWeight() int      { return t.Metrics().MaxLoadWeight }
func (t *Train) MaxWeight() int          { return t.Metrics().MaxWeight }
func (t *Train) Length() int             { return t.Metrics().Length }
func (t *Train) TotalPower() int         { return t.Metrics().TotalPower }
func (t *Train) IsOperational() bool     { return t.Metrics().Operational }
func (t *Train) RequiredConductors() int { return t.Metrics().RequiredConductors }

// Elements 返回当前序列的副本，修改副本不影响列车
func (t *Train) Elements() []Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.elements)
}

// Snapshot 同一时刻的版本号与序列副本，供持久化使用
func (t *Train) Snapshot() (uint64, []Element) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version, slices.Clone(t.elements)
}

// Len 车辆数
func (t *Train) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.elements)
}

// At 返回指定位置的车辆
func (t *Train) At(position int) (Element, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if position < 0 || position >= len(t.elements) {
		return nil, false
	}
	return t.elements[position], true
}

// Contains 是否包含该车辆（按序列号）
func (t *Train) Contains(e Element) bool {
	return t.IndexOf(e) >= 0
}

// IndexOf 车辆位置，不在列车中时返回 -1
func (t *Train) IndexOf(e Element) int {
	if isNil(e) {
		return -1
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.indexLocked(e)
}

// Next 返回紧随其后的车辆，由序列相邻关系推导
func (t *Train) Next(e Element) (Element, bool) {
	return t.neighbour(e, 1)
}

// Previous 返回紧靠其前的车辆
func (t *Train) Previous(e Element) (Element, bool) {
	return t.neighbour(e, -1)
}

func (t *Train) neighbour(e Element, offset int) (Element, bool) {
	if isNil(e) {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := t.indexLocked(e)
	if idx < 0 {
		return nil, false
	}
	n := idx + offset
	if n < 0 || n >= len(t.elements) {
		return nil, false
	}
	return t.elements[n], true
}

// Locomotives 按顺序返回所有机车
func (t *Train) Locomotives() []*Locomotive {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Locomotive, 0, len(t.elements))
	for _, e := range t.elements {
		if l, ok := e.(*Locomotive); ok {
			out = append(out, l)
		}
	}
	return out
}

// Wagons 按顺序返回所有车厢
func (t *Train) Wagons() []*Wagon {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Wagon, 0, len(t.elements))
	for _, e := range t.elements {
		if w, ok := e.(*Wagon); ok {
			out = append(out, w)
		}
	}
	return out
}

func (t *Train) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Train %s:\n", t.id)
	for i, e := range t.elements {
		fmt.Fprintf(&sb, "%d : %s\n", i, e)
	}
	return sb.String()
}
