package natsjetstream

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railkit/messaging"
)

func TestNewTransport_Defaults(t *testing.T) {
	tr := NewTransport(Config{SubjectPrefix: "yard"})

	assert.Equal(t, "RAILKIT", tr.cfg.Stream)
	assert.Equal(t, "yard.", tr.cfg.SubjectPrefix)
	assert.Equal(t, 30*time.Second, tr.cfg.AckWait)
	assert.Equal(t, 5, tr.cfg.MaxDeliver)
}

func TestSubjectAndDurableNames(t *testing.T) {
	tr := NewTransport(Config{})

	assert.Equal(t, "railkit.consist.element.coupled", tr.subjectName("consist.element.coupled"))
	assert.Equal(t, "railkit.>", tr.subjectName(messaging.WildcardType))
	assert.Equal(t, "railkit-consist_element_coupled", tr.durableName("consist.element.coupled"))
	assert.Equal(t, "railkit-all", tr.durableName(messaging.WildcardType))
}

func TestStreamConfig(t *testing.T) {
	sc := streamConfig(Config{Stream: "S", SubjectPrefix: "p.", Retention: "WorkQueue", MaxAge: time.Hour, Replicas: 3})

	assert.Equal(t, "S", sc.Name)
	assert.Equal(t, []string{"p.>"}, sc.Subjects)
	assert.Equal(t, nats.WorkQueuePolicy, sc.Retention)
	assert.Equal(t, time.Hour, sc.MaxAge)
	assert.Equal(t, 3, sc.Replicas)

	assert.Equal(t, nats.LimitsPolicy, streamConfig(Config{}).Retention)
}

func TestPublish_NotRunning(t *testing.T) {
	tr := NewTransport(Config{})
	err := tr.Publish(context.Background(), messaging.NewMessage("1", "consist.train.formed", nil))
	assert.Error(t, err)
}

func TestDispatch_OnlySubscribedType(t *testing.T) {
	tr := NewTransport(Config{})
	var got []string
	h := messaging.NewFuncHandler("rec", func(ctx context.Context, m messaging.IMessage) error {
		got = append(got, m.GetID())
		return nil
	})
	require.NoError(t, tr.Subscribe("consist.train.formed", h))

	require.NoError(t, tr.dispatch(context.Background(), "consist.train.formed", messaging.NewMessage("a", "consist.train.formed", nil)))
	require.NoError(t, tr.dispatch(context.Background(), "consist.element.coupled", messaging.NewMessage("b", "consist.element.coupled", nil)))

	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, int64(1), tr.Stats().Delivered)
}
