// Package yard 调车场应用服务：登记车辆、编组与解编列车，并发布编组事件
package yard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"railkit/domain/consist"
	"railkit/errors"
	"railkit/logging"
	"railkit/messaging"
	"railkit/messaging/middleware"
	"railkit/storage/depot"
)

// Service 调车场服务
//
// 每个编组操作依次执行：加载列车、应用操作、保存、发布待发事件、清空事件。
// 保存失败时撤销内存中的操作，内存与库保持一致。
type Service struct {
	depot   *depot.Depot
	bus     *messaging.MessageBus
	logger  logging.Logger
	serials consist.SerialSource

	// 编组操作串行执行，保存顺序与内存版本顺序一致
	mu      sync.Mutex
	closers []func() error
}

// Option 服务选项
type Option func(*Service)

// WithLogger 指定日志器
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithSerialSource 指定新车辆的序列号来源
func WithSerialSource(src consist.SerialSource) Option {
	return func(s *Service) { s.serials = src }
}

// NewService 创建服务
func NewService(d *depot.Depot, bus *messaging.MessageBus, opts ...Option) *Service {
	s := &Service{
		depot:   d,
		bus:     bus,
		logger:  logging.GetLogger(),
		serials: consist.RandomSerials(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logging.String("component", "yard"))
	return s
}

// Subscribe 订阅编组事件，eventType 为 messaging.WildcardType 时订阅全部
func (s *Service) Subscribe(eventType string, handler messaging.IMessageHandler) error {
	return s.bus.Subscribe(eventType, handler)
}

// Close 释放 Open 创建的资源，按创建的逆序关闭
func (s *Service) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// RegisterLocomotive 创建并登记机车
func (s *Service) RegisterLocomotive(ctx context.Context, spec consist.LocomotiveSpec) (*consist.Locomotive, error) {
	l, err := consist.NewLocomotive(s.serials, spec)
	if err != nil {
		return nil, err
	}
	if err := s.depot.RegisterElement(ctx, l); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "locomotive registered", logging.String("serial", l.Serial().String()),
		logging.String("type", l.TypeDesignation()))
	return l, nil
}

// RegisterWagon 创建并登记车厢
func (s *Service) RegisterWagon(ctx context.Context, spec consist.WagonSpec) (*consist.Wagon, error) {
	w, err := consist.NewWagon(s.serials, spec)
	if err != nil {
		return nil, err
	}
	if err := s.depot.RegisterElement(ctx, w); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "wagon registered", logging.String("serial", w.Serial().String()),
		logging.String("type", w.TypeDesignation()))
	return w, nil
}

// FormTrain 以指定机车组成新列车
func (s *Service) FormTrain(ctx context.Context, locoSerial consist.Serial) (*consist.Train, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.depot.Element(ctx, locoSerial)
	if err != nil {
		return nil, err
	}
	loco, ok := e.(*consist.Locomotive)
	if !ok {
		return nil, errors.NewInvalidPlacementError(locoSerial.String())
	}
	t, err := consist.NewTrain(loco)
	if err != nil {
		return nil, err
	}
	if err := s.depot.SaveTrain(ctx, t); err != nil {
		t.Dissolve()
		return nil, err
	}
	s.logger.Info(ctx, "train formed", logging.String("train_id", t.ID()), logging.String("locomotive", locoSerial.String()))
	return t, s.publish(ctx, t)
}

// Couple 把车辆挂到列车尾部
func (s *Service) Couple(ctx context.Context, trainID string, serial consist.Serial) error {
	return s.couple(ctx, trainID, serial, func(t *consist.Train, e consist.Element) error {
		return t.AppendElement(e)
	})
}

// CoupleAt 把车辆插入到指定位置
func (s *Service) CoupleAt(ctx context.Context, trainID string, serial consist.Serial, position int) error {
	return s.couple(ctx, trainID, serial, func(t *consist.Train, e consist.Element) error {
		return t.InsertElementAt(e, position)
	})
}

// CoupleAfter 把车辆插入到锚点车辆之后
func (s *Service) CoupleAfter(ctx context.Context, trainID string, anchor, serial consist.Serial) error {
	return s.coupleRelative(ctx, trainID, anchor, serial, (*consist.Train).InsertElementAfter)
}

// CoupleBefore 把车辆插入到锚点车辆之前
func (s *Service) CoupleBefore(ctx context.Context, trainID string, anchor, serial consist.Serial) error {
	return s.coupleRelative(ctx, trainID, anchor, serial, (*consist.Train).InsertElementBefore)
}

func (s *Service) coupleRelative(ctx context.Context, trainID string, anchor, serial consist.Serial,
	insert func(t *consist.Train, anchor, e consist.Element) error) error {
	return s.couple(ctx, trainID, serial, func(t *consist.Train, e consist.Element) error {
		a, err := s.depot.Element(ctx, anchor)
		if err != nil {
			if errors.IsNotFound(err) {
				return errors.NewElementNotFoundError(anchor.String())
			}
			return err
		}
		return insert(t, a, e)
	})
}

func (s *Service) couple(ctx context.Context, trainID string, serial consist.Serial,
	apply func(t *consist.Train, e consist.Element) error) error {
	return s.mutate(ctx, trainID, func(t *consist.Train) (func(), error) {
		e, err := s.depot.Element(ctx, serial)
		if err != nil {
			return nil, err
		}
		if err := apply(t, e); err != nil {
			return nil, err
		}
		return func() { _ = t.RemoveElement(e) }, nil
	})
}

// Uncouple 从列车中摘下车辆
func (s *Service) Uncouple(ctx context.Context, trainID string, serial consist.Serial) error {
	return s.mutate(ctx, trainID, func(t *consist.Train) (func(), error) {
		e, err := s.depot.Element(ctx, serial)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, errors.NewElementNotFoundError(serial.String())
			}
			return nil, err
		}
		position := t.IndexOf(e)
		if err := t.RemoveElement(e); err != nil {
			return nil, err
		}
		return func() { _ = t.InsertElementAt(e, position) }, nil
	})
}

// Disband 解编列车：删除列车记录，所有车辆恢复空闲
func (s *Service) Disband(ctx context.Context, trainID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.depot.LoadTrain(ctx, trainID)
	if err != nil {
		return err
	}
	if err := s.depot.DeleteTrain(ctx, trainID); err != nil {
		return err
	}
	released := t.Dissolve()
	s.logger.Info(ctx, "train disbanded", logging.String("train_id", trainID), logging.Int("released", len(released)))
	return s.publish(ctx, t)
}

// Trains 列出所有列车 ID
func (s *Service) Trains(ctx context.Context) ([]string, error) {
	return s.depot.ListTrains(ctx)
}

// FreeElements 列出未编入任何列车的车辆
func (s *Service) FreeElements(ctx context.Context) ([]consist.Element, error) {
	return s.depot.ListElements(ctx, true)
}

// mutate 串行执行编组操作；op 返回的 undo 在保存失败时撤销内存修改
func (s *Service) mutate(ctx context.Context, trainID string, op func(t *consist.Train) (undo func(), err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.depot.LoadTrain(ctx, trainID)
	if err != nil {
		return err
	}
	undo, err := op(t)
	if err != nil {
		return err
	}
	if err := s.depot.SaveTrain(ctx, t); err != nil {
		undo()
		t.ClearEvents()
		s.logger.Warn(ctx, "save failed, change reverted", logging.String("train_id", trainID), logging.Error(err))
		return err
	}
	return s.publish(ctx, t)
}

// publish 发布并清空待发事件；状态已持久化，发布失败只返回 QUEUE_ERROR
func (s *Service) publish(ctx context.Context, t *consist.Train) error {
	events := t.PendingEvents()
	t.ClearEvents()
	if len(events) == 0 {
		return nil
	}

	ctx = middleware.WithCorrelationID(ctx, uuid.NewString())
	messages := make([]messaging.IMessage, 0, len(events))
	for _, evt := range events {
		msg := messaging.NewMessage(uuid.NewString(), string(evt.Type), evt)
		msg.SetMetadata(messaging.MetaTrainID, evt.TrainID)
		msg.SetMetadata(messaging.MetaVersion, evt.Version)
		messages = append(messages, msg)
	}
	if err := s.bus.PublishAll(ctx, messages); err != nil {
		return errors.WrapWithLog(ctx, err, errors.ErrCodeQueue,
			fmt.Sprintf("列车 %s 的 %d 条事件发布失败", t.ID(), len(events)),
			logging.String("train_id", t.ID()))
	}
	return nil
}
