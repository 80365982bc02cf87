// Package consist 定义列车编组领域模型
//
// 一列列车是机车与车厢的有序序列（从车头到车尾）。Train 聚合负责维护编组约束：
//   - 序列中至少有一台机车；
//   - 首位必须是机车；
//   - 同一车辆（按序列号判断）不会出现两次；
//   - 每个成员车辆的归属指向本列车，非成员车辆没有归属；
//   - 相邻关系只由序列位置推导，车辆上不保存前后指针。
//
// 所有编组操作先校验后修改，失败时序列与归属完全不变。
package consist

import (
	"fmt"
	"sync"
	"time"

	"railkit/errors"
	"railkit/validation"
)

// ElementKind 车辆种类
type ElementKind string

const (
	KindLocomotive ElementKind = "locomotive"
	KindWagon      ElementKind = "wagon"
)

// Element 列车组成单元（机车或车厢）
//
// 物理属性在构造后不可变；归属只能由 Train 的编组操作修改。
// 接口通过未导出方法封闭，只有 *Locomotive 与 *Wagon 实现。
type Element interface {
	Serial() Serial
	Kind() ElementKind

	// EmptyWeight 空车重量（kg）
	EmptyWeight() int
	// Length 长度（mm）
	Length() int
	MaxPassengerCount() int
	// MaxGoodsWeight 最大载货重量（kg）
	MaxGoodsWeight() int

	TypeDesignation() string
	Manufacturer() string
	ConstructionDate() time.Time

	// Train 当前所属列车，未编入任何列车时返回 nil
	Train() *Train

	String() string

	core() *element
}

// Attributes 机车与车厢共有的物理属性
type Attributes struct {
	EmptyWeight       int
	Length            int
	MaxPassengerCount int
	MaxGoodsWeight    int
	TypeDesignation   string
	Manufacturer      string
	ConstructionDate  time.Time
}

// Validate 校验共有属性
func (a Attributes) Validate() error {
	return validation.First(
		validation.ValidateNonNegative(a.EmptyWeight, "空车重量"),
		validation.ValidatePositive(a.Length, "长度"),
		validation.ValidateNonNegative(a.MaxPassengerCount, "最大载客数"),
		validation.ValidateNonNegative(a.MaxGoodsWeight, "最大载货重量"),
		validation.ValidateRequired(a.TypeDesignation, "型号"),
		validation.ValidateStringLength(a.TypeDesignation, "型号", 1, 64),
		validation.ValidateRequired(a.Manufacturer, "制造商"),
		validation.ValidateStringLength(a.Manufacturer, "制造商", 1, 128),
		validation.ValidateNotAfter(a.ConstructionDate, time.Now(), "出厂日期"),
	)
}

// element 共有状态，嵌入到 Locomotive 与 Wagon 中
type element struct {
	serial Serial
	attrs  Attributes

	mu    sync.Mutex
	owner *Train
}

func (e *element) init(src SerialSource, attrs Attributes) error {
	if src == nil {
		return errors.NewValidationError("序列号来源不能为空")
	}
	if err := attrs.Validate(); err != nil {
		return err
	}
	serial, err := src.NextSerial()
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeInternal, "生成序列号失败")
	}
	e.serial = serial
	e.attrs = attrs
	return nil
}

func (e *element) core() *element { return e }

func (e *element) Serial() Serial              { return e.serial }
func (e *element) EmptyWeight() int            { return e.attrs.EmptyWeight }
func (e *element) Length() int                 { return e.attrs.Length }
func (e *element) MaxPassengerCount() int      { return e.attrs.MaxPassengerCount }
func (e *element) MaxGoodsWeight() int         { return e.attrs.MaxGoodsWeight }
func (e *element) TypeDesignation() string     { return e.attrs.TypeDesignation }
func (e *element) Manufacturer() string        { return e.attrs.Manufacturer }
func (e *element) ConstructionDate() time.Time { return e.attrs.ConstructionDate }

// Attributes 返回共有属性的副本
func (e *element) Attributes() Attributes { return e.attrs }

// Train 当前所属列车
func (e *element) Train() *Train {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// assign 设置归属
//
// 已属于其他列车时返回 ALREADY_ASSIGNED；重复设置为同一列车视为无操作。
// 检查与设置在同一把锁内完成，两列车并发争用同一车辆时只有一方成功。
func (e *element) assign(t *Train) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.owner != nil && e.owner != t {
		return errors.NewAlreadyAssignedError(e.serial.String(), e.owner.ID())
	}
	e.owner = t
	return nil
}

// release 解除归属；只有当前归属者可以解除
func (e *element) release(t *Train) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.owner == t {
		e.owner = nil
	}
}

func (e *element) describe() string {
	return fmt.Sprintf("%s, serial=%s, weight=%d, length=%d, passengers=%d, goods=%d, manufacturer=%s, built=%s",
		e.attrs.TypeDesignation, e.serial, e.attrs.EmptyWeight, e.attrs.Length,
		e.attrs.MaxPassengerCount, e.attrs.MaxGoodsWeight, e.attrs.Manufacturer,
		e.attrs.ConstructionDate.Format(time.DateOnly))
}

// SameElement 按序列号判断两个车辆是否为同一车辆
func SameElement(a, b Element) bool {
	if isNil(a) || isNil(b) {
		return false
	}
	return a.Serial() == b.Serial()
}

func isNil(e Element) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *Locomotive:
		return v == nil
	case *Wagon:
		return v == nil
	default:
		return false
	}
}

func isLocomotive(e Element) bool {
	return e.Kind() == KindLocomotive
}
