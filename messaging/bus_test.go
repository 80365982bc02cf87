package messaging_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railkit/logging"
	"railkit/messaging"
	"railkit/messaging/middleware"
	synctransport "railkit/messaging/transport/sync"
)

func newBus(t *testing.T) (*messaging.MessageBus, *synctransport.SyncTransport) {
	t.Helper()
	tpt := synctransport.NewSyncTransport()
	require.NoError(t, tpt.Start(context.Background()))
	t.Cleanup(func() { _ = tpt.Close() })
	return messaging.NewMessageBus(tpt), tpt
}

type orderMiddleware struct {
	name string
	log  *[]string
}

func (m orderMiddleware) Name() string { return m.name }

func (m orderMiddleware) Handle(ctx context.Context, msg messaging.IMessage, next messaging.HandlerFunc) error {
	*m.log = append(*m.log, m.name)
	return next(ctx, msg)
}

func TestMessageBus_MiddlewareOrder(t *testing.T) {
	bus, _ := newBus(t)
	var order []string
	bus.Use(orderMiddleware{name: "first", log: &order})
	bus.Use(orderMiddleware{name: "second", log: &order})

	var received int
	require.NoError(t, bus.Subscribe("T", messaging.NewFuncHandler("h", func(ctx context.Context, m messaging.IMessage) error {
		order = append(order, "handler")
		received++
		return nil
	})))

	require.NoError(t, bus.Publish(context.Background(), messaging.NewMessage("1", "T", nil)))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
	assert.Equal(t, 1, received)
}

func TestMessageBus_PublishAll(t *testing.T) {
	bus, tpt := newBus(t)
	var ids []string
	require.NoError(t, bus.Subscribe(messaging.WildcardType, messaging.NewFuncHandler("h", func(ctx context.Context, m messaging.IMessage) error {
		ids = append(ids, m.GetID())
		return nil
	})))

	require.NoError(t, bus.PublishAll(context.Background(), nil))
	require.NoError(t, bus.PublishAll(context.Background(), []messaging.IMessage{
		messaging.NewMessage("a", "X", nil),
		messaging.NewMessage("b", "Y", nil),
	}))
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, int64(2), tpt.Stats().Published)
}

func TestMessageBus_MiddlewareAbort(t *testing.T) {
	bus, tpt := newBus(t)
	bus.Use(rejectAll{})

	err := bus.PublishAll(context.Background(), []messaging.IMessage{messaging.NewMessage("a", "X", nil)})
	assert.Error(t, err)
	assert.Equal(t, int64(0), tpt.Stats().Published)
}

type rejectAll struct{}

func (rejectAll) Name() string { return "reject" }
func (rejectAll) Handle(ctx context.Context, msg messaging.IMessage, next messaging.HandlerFunc) error {
	return errors.New("rejected")
}

func TestCorrelationMiddleware(t *testing.T) {
	bus, _ := newBus(t)
	bus.Use(middleware.NewCorrelationMiddleware())

	var got []string
	require.NoError(t, bus.Subscribe(messaging.WildcardType, messaging.NewFuncHandler("h", func(ctx context.Context, m messaging.IMessage) error {
		got = append(got, m.GetMetadata()[messaging.MetaCorrelationID].(string))
		return nil
	})))

	ctx := middleware.WithCorrelationID(context.Background(), "op-7")
	require.NoError(t, bus.Publish(ctx, messaging.NewMessage("a", "X", nil)))
	require.NoError(t, bus.Publish(context.Background(), messaging.NewMessage("b", "X", nil)))

	preset := messaging.NewMessage("c", "X", nil)
	preset.SetMetadata(messaging.MetaCorrelationID, "kept")
	require.NoError(t, bus.Publish(ctx, preset))

	assert.Equal(t, []string{"op-7", "b", "kept"}, got)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	bus, _ := newBus(t)
	bus.Use(middleware.NewLoggingMiddleware(logging.NewStdLoggerWithWriter("", &buf, logging.DebugLevel)))

	msg := messaging.NewMessage("a", "consist.train.formed", nil)
	msg.SetMetadata(messaging.MetaTrainID, "t-9")
	require.NoError(t, bus.Publish(context.Background(), msg))

	out := buf.String()
	assert.Contains(t, out, "published")
	assert.Contains(t, out, "consist.train.formed")
	assert.Contains(t, out, "t-9")
}
