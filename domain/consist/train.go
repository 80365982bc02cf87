package consist

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"railkit/errors"
)

// Train 列车聚合根
//
// 持有从车头到车尾的有序车辆序列。编组操作互斥执行，
// 查询可以并发执行但不会与编组操作交错。
type Train struct {
	id string

	mu        sync.RWMutex
	elements  []Element
	version   uint64
	dissolved bool
	events    []Event
}

// NewTrain 以一台机车组成新列车，ID 随机生成
func NewTrain(loco *Locomotive) (*Train, error) {
	return NewTrainWithID(uuid.NewString(), loco)
}

// NewTrainWithID 以指定 ID 组成新列车
//
// 机车已属于其他列车时返回 ALREADY_ASSIGNED，其余情况总是成功。
func NewTrainWithID(id string, loco *Locomotive) (*Train, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewValidationError("列车ID不能为空")
	}
	if loco == nil {
		return nil, errors.NewValidationError("机车不能为空")
	}
	t := &Train{id: id}
	if err := loco.assign(t); err != nil {
		return nil, err
	}
	t.elements = []Element{loco}
	t.record(EventTrainFormed, loco, 0)
	return t, nil
}

// Restore 从持久化状态重建列车，不产生领域事件
//
// 重建同样遵守编组约束：首位必须是机车、车辆不重复、车辆未归属其他列车。
// 任一检查失败时已设置的归属会被撤销。
func Restore(id string, version uint64, elements []Element) (*Train, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewValidationError("列车ID不能为空")
	}
	if len(elements) == 0 {
		return nil, errors.NewValidationError("列车至少需要一台机车")
	}
	for i, e := range elements {
		if isNil(e) {
			return nil, errors.NewValidationError(fmt.Sprintf("位置 %d 的车辆为空", i))
		}
	}
	if !isLocomotive(elements[0]) {
		return nil, errors.NewInvalidPlacementError(elements[0].Serial().String())
	}
	seen := make(map[Serial]struct{}, len(elements))
	for _, e := range elements {
		if _, dup := seen[e.Serial()]; dup {
			return nil, errors.NewDuplicateElementError(e.Serial().String())
		}
		seen[e.Serial()] = struct{}{}
	}

	t := &Train{id: id, version: version}
	for i, e := range elements {
		if err := e.core().assign(t); err != nil {
			for _, claimed := range elements[:i] {
				claimed.core().release(t)
			}
			return nil, err
		}
	}
	t.elements = slices.Clone(elements)
	return t, nil
}

// ID 列车标识
func (t *Train) ID() string { return t.id }

// Version 列车版本号，每次成功的编组操作加一
func (t *Train) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Dissolved 列车是否已解编
func (t *Train) Dissolved() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dissolved
}

// AppendElement 将车辆挂到车尾
func (t *Train) AppendElement(e Element) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkCandidateLocked(e); err != nil {
		return err
	}
	return t.insertLocked(e, len(t.elements))
}

// InsertElementAt 将车辆插入到指定位置，原位置及之后的车辆后移
func (t *Train) InsertElementAt(e Element, position int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkCandidateLocked(e); err != nil {
		return err
	}
	if position < 0 || position > len(t.elements) {
		return errors.NewOutOfBoundsError(position, len(t.elements))
	}
	if position == 0 && !isLocomotive(e) {
		return errors.NewInvalidPlacementError(e.Serial().String())
	}
	return t.insertLocked(e, position)
}

// InsertElementAfter 将车辆插入到锚点车辆之后
func (t *Train) InsertElementAfter(anchor, e Element) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkCandidateLocked(e); err != nil {
		return err
	}
	idx, err := t.anchorIndexLocked(anchor)
	if err != nil {
		return err
	}
	return t.insertLocked(e, idx+1)
}

// InsertElementBefore 将车辆插入到锚点车辆之前
//
// 锚点位于首位时，只有机车可以插入到它之前。
func (t *Train) InsertElementBefore(anchor, e Element) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkCandidateLocked(e); err != nil {
		return err
	}
	idx, err := t.anchorIndexLocked(anchor)
	if err != nil {
		return err
	}
	if idx == 0 && !isLocomotive(e) {
		return errors.NewInvalidPlacementError(e.Serial().String())
	}
	return t.insertLocked(e, idx)
}

// RemoveElement 将车辆从列车中摘下并清除其归属
//
// 不能摘下唯一的机车；摘下首位机车后紧随其后的必须仍是机车。
func (t *Train) RemoveElement(e Element) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkActiveLocked(); err != nil {
		return err
	}
	if isNil(e) {
		return errors.NewValidationError("车辆不能为空")
	}
	idx := t.indexLocked(e)
	if idx < 0 {
		return errors.NewElementNotFoundError(e.Serial().String())
	}
	member := t.elements[idx]
	if isLocomotive(member) && t.locomotiveCountLocked() == 1 {
		return errors.NewLastLocomotiveError(member.Serial().String())
	}
	if idx == 0 && !isLocomotive(t.elements[1]) {
		return errors.NewInvalidPlacementError(t.elements[1].Serial().String())
	}

	t.elements = slices.Delete(t.elements, idx, idx+1)
	member.core().release(t)
	t.record(EventElementUncoupled, member, idx)
	return nil
}

// Dissolve 解编列车：清除所有车辆的归属并返回原序列
//
// 解编后所有编组操作返回 TRAIN_DISSOLVED，查询看到空编组：指标全部为零，
// IsOperational 为 false，Elements 不含机车。重复调用返回 nil。
func (t *Train) Dissolve() []Element {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dissolved {
		return nil
	}
	former := t.elements
	for _, e := range former {
		e.core().release(t)
	}
	t.elements = nil
	t.dissolved = true
	t.record(EventTrainDissolved, nil, 0)
	return former
}

// checkCandidateLocked 校验待加入车辆：列车未解编、车辆非空且不在本列车中
func (t *Train) checkCandidateLocked(e Element) error {
	if err := t.checkActiveLocked(); err != nil {
		return err
	}
	if isNil(e) {
		return errors.NewValidationError("车辆不能为空")
	}
	if t.indexLocked(e) >= 0 {
		return errors.NewDuplicateElementError(e.Serial().String())
	}
	return nil
}

func (t *Train) checkActiveLocked() error {
	if t.dissolved {
		return errors.NewTrainDissolvedError(t.id)
	}
	return nil
}

func (t *Train) anchorIndexLocked(anchor Element) (int, error) {
	if isNil(anchor) {
		return -1, errors.NewValidationError("锚点车辆不能为空")
	}
	idx := t.indexLocked(anchor)
	if idx < 0 {
		return -1, errors.NewElementNotFoundError(anchor.Serial().String())
	}
	return idx, nil
}

// insertLocked 设置归属后插入；归属是最后一项可能失败的检查，失败时序列不变
func (t *Train) insertLocked(e Element, position int) error {
	if err := e.core().assign(t); err != nil {
		return err
	}
	t.elements = slices.Insert(t.elements, position, e)
	t.record(EventElementCoupled, e, position)
	return nil
}

func (t *Train) indexLocked(e Element) int {
	serial := e.Serial()
	for i, m := range t.elements {
		if m.Serial() == serial {
			return i
		}
	}
	return -1
}

func (t *Train) locomotiveCountLocked() int {
	n := 0
	for _, e := range t.elements {
		if isLocomotive(e) {
			n++
		}
	}
	return n
}
