package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSink(t *testing.T) (*RedisSink, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSink(client, 100, time.Hour, zaptest.NewLogger(t)), mr
}

func TestRedisSinkAppendAndRead(t *testing.T) {
	sink, _ := newTestSink(t)

	sink.Append("wf-1", Event{WorkflowID: "wf-1", Type: EventWorkflowStarted, Seq: 0})
	sink.Append("wf-1", Event{WorkflowID: "wf-1", Type: EventAgentStarted, Role: "strategic", Seq: 1})

	events, cursor, err := sink.Read(context.Background(), "wf-1", "0", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventWorkflowStarted, events[0].Type)
	assert.Equal(t, "strategic", events[1].Role)
	assert.NotEqual(t, "0", cursor)
}

func TestRedisSinkReadAfterCursor(t *testing.T) {
	sink, _ := newTestSink(t)

	for i := 0; i < 4; i++ {
		sink.Append("wf-1", Event{WorkflowID: "wf-1", Type: EventAgentCompleted, Seq: uint64(i)})
	}

	first, cursor, err := sink.Read(context.Background(), "wf-1", "0", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, _, err := sink.Read(context.Background(), "wf-1", cursor, 0)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, uint64(2), rest[0].Seq)
	assert.Equal(t, uint64(3), rest[1].Seq)
}

func TestRedisSinkReadEmptyStream(t *testing.T) {
	sink, _ := newTestSink(t)

	events, cursor, err := sink.Read(context.Background(), "wf-missing", "", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, "0", cursor, "cursor stays at the start of an empty stream")
}

func TestRedisSinkSetsStreamTTL(t *testing.T) {
	sink, mr := newTestSink(t)

	sink.Append("wf-1", Event{WorkflowID: "wf-1", Type: EventWorkflowStarted})

	ttl := mr.TTL(StreamKey("wf-1"))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRedisSinkAppendSurvivesDownRedis(t *testing.T) {
	sink, mr := newTestSink(t)
	mr.Close()

	// Must not panic or block; failures are logged and dropped.
	sink.Append("wf-1", Event{WorkflowID: "wf-1", Type: EventWorkflowStarted})
}
