package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_WritesKeyedJSON(t *testing.T) {
	fw := &fakeWriter{}
	p := &KafkaPublisher{writer: fw, timeout: time.Second}

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), Event{Type: ProductsFeatured, Entity: "product", IDs: []int64{4, 7}, OccurredAt: at})
	require.NoError(t, err)

	require.Len(t, fw.msgs, 1)
	msg := fw.msgs[0]
	assert.True(t, fw.deadline, "publish must be bounded")
	assert.Equal(t, "product:4", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, ProductsFeatured, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, []int64{4, 7}, decoded.IDs)
	assert.Equal(t, "product", decoded.Entity)

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestKafkaPublisher_WrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}, timeout: time.Second}

	err := p.Publish(context.Background(), Event{Type: CategoryDeleted, Entity: "category", IDs: []int64{1}})
	assert.ErrorIs(t, err, boom)
}

func TestEvent_KeyWithoutIDs(t *testing.T) {
	assert.Equal(t, "category", Event{Entity: "category"}.Key())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
