package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railkit/messaging"
)

func counter(name string, n *int) *messaging.FuncHandler {
	return messaging.NewFuncHandler(name, func(ctx context.Context, m messaging.IMessage) error {
		*n++
		return nil
	})
}

func TestSyncTransport_PublishFlow(t *testing.T) {
	tpt := NewSyncTransport()
	require.NoError(t, tpt.Start(context.Background()))
	defer tpt.Close()

	var exact, all int
	require.NoError(t, tpt.Subscribe("consist.element.coupled", counter("exact", &exact)))
	require.NoError(t, tpt.Subscribe(messaging.WildcardType, counter("all", &all)))

	require.NoError(t, tpt.Publish(context.Background(), messaging.NewMessage("1", "consist.element.coupled", nil)))
	require.NoError(t, tpt.Publish(context.Background(), messaging.NewMessage("2", "consist.train.formed", nil)))

	assert.Equal(t, 1, exact)
	assert.Equal(t, 2, all)

	stats := tpt.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, 2, stats.HandlerCount)
	assert.Equal(t, []string{"*", "consist.element.coupled"}, stats.MessageTypes)
	assert.Equal(t, int64(2), stats.Published)
	assert.Equal(t, int64(3), stats.Delivered)
}

func TestSyncTransport_NotRunning(t *testing.T) {
	tpt := NewSyncTransport()
	err := tpt.Publish(context.Background(), messaging.NewMessage("x", "T", nil))
	assert.Error(t, err)
}

// 某个处理器失败时其余处理器仍被调用，错误合并返回
func TestSyncTransport_HandlerErrors(t *testing.T) {
	tpt := NewSyncTransport()
	require.NoError(t, tpt.Start(context.Background()))

	boom := errors.New("boom")
	var calls int
	require.NoError(t, tpt.Subscribe("T", messaging.NewFuncHandler("bad", func(ctx context.Context, m messaging.IMessage) error {
		return boom
	})))
	require.NoError(t, tpt.Subscribe("T", counter("good", &calls)))

	err := tpt.Publish(context.Background(), messaging.NewMessage("1", "T", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), tpt.Stats().Failed)
}

func TestSyncTransport_Unsubscribe(t *testing.T) {
	tpt := NewSyncTransport()
	require.NoError(t, tpt.Start(context.Background()))

	var n int
	h := counter("h", &n)
	require.NoError(t, tpt.Subscribe("T", h))
	require.NoError(t, tpt.Unsubscribe("T", h))
	assert.Error(t, tpt.Unsubscribe("T", h))

	require.NoError(t, tpt.Publish(context.Background(), messaging.NewMessage("1", "T", nil)))
	assert.Equal(t, 0, n)
	assert.Empty(t, tpt.Stats().MessageTypes)
}
