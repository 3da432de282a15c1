package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublish_AfterCloseFails(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, 4, zap.NewNop())
	p.Close()
	p.Close()

	err := p.Publish(context.Background(), "t", nil, []byte("x"))
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestPublish_AfterContextStopFails(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, 4, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.WaitClosed()

	for i := 0; i < 10; i++ {
		err := p.Publish(context.Background(), "t", nil, []byte("late"))
		require.ErrorIs(t, err, ErrProducerClosed)
	}
	assert.Empty(t, p.inbox)
}

func TestPublish_CloseWakesBlockedPublisher(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, 1, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, "t", nil, []byte("fills buffer")))

	errc := make(chan error, 1)
	go func() { errc <- p.Publish(ctx, "t", nil, []byte("blocked")) }()
	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrProducerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("publisher still blocked after Close")
	}
	assert.Len(t, p.inbox, 1)
}

func TestPublish_BuffersUntilFull(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, 1, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	// not started: the first message fits the buffer, the second blocks
	require.NoError(t, p.PublishJSON(ctx, "t", []byte("k"), "Evt", map[string]int{"a": 1}))
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "t", nil, []byte("y")), context.Canceled)

	m := <-p.inbox
	assert.Equal(t, "t", m.Topic)
	assert.Equal(t, "Evt", string(m.Headers[0].Value))
	assert.JSONEq(t, `{"a":1}`, string(m.Value))
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		ID int64 `json:"id"`
	}
	got, err := UnwrapPayload[payload](json.RawMessage(`{"id":9}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)

	_, err = UnwrapPayload[payload](json.RawMessage(`{"id":"x"}`))
	assert.Error(t, err)
}
