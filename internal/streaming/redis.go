package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atlasforge/assessor/internal/metrics"
)

// RedisSink mirrors events to a per-workflow Redis Stream so gateways and
// other processes can tail them. Appends are best-effort with a short
// deadline; failures are counted and logged, never propagated.
type RedisSink struct {
	client *redis.Client
	maxLen int64
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSink creates a sink writing to streams named by StreamKey.
func NewRedisSink(client *redis.Client, maxLen int64, ttl time.Duration, logger *zap.Logger) *RedisSink {
	if maxLen <= 0 {
		maxLen = 1024
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSink{client: client, maxLen: maxLen, ttl: ttl, logger: logger}
}

// StreamKey is the Redis Stream holding one workflow's events.
func StreamKey(workflowID string) string {
	return fmt.Sprintf("assessor:events:%s", workflowID)
}

// Append writes the event to the workflow's stream, trimming to maxLen.
func (s *RedisSink) Append(workflowID string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := StreamKey(workflowID)
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"seq":     evt.Seq,
			"type":    evt.Type,
			"payload": string(evt.Marshal()),
		},
	}).Err()
	if err != nil {
		metrics.EventEmitFailures.Inc()
		s.logger.Warn("Failed to append event to Redis stream",
			zap.String("workflow_id", workflowID),
			zap.Error(err),
		)
		return
	}
	// Refresh the stream TTL on every append so finished workflows age out.
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		s.logger.Debug("Failed to refresh stream TTL", zap.String("key", key), zap.Error(err))
	}
}

// Read returns up to count events from a workflow's stream starting after
// the given stream ID ("0" for the beginning).
func (s *RedisSink) Read(ctx context.Context, workflowID, afterID string, count int64) ([]Event, string, error) {
	start := "-"
	if afterID != "" && afterID != "0" {
		start = "(" + afterID
	} else {
		afterID = "0"
	}
	msgs, err := s.client.XRange(ctx, StreamKey(workflowID), start, "+").Result()
	if err != nil {
		return nil, afterID, fmt.Errorf("read stream: %w", err)
	}
	events := make([]Event, 0, len(msgs))
	lastID := afterID
	for _, msg := range msgs {
		if count > 0 && int64(len(events)) >= count {
			break
		}
		payload, _ := msg.Values["payload"].(string)
		var evt Event
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			s.logger.Warn("Skipping malformed stream entry", zap.String("id", msg.ID), zap.Error(err))
			continue
		}
		events = append(events, evt)
		lastID = msg.ID
	}
	return events, lastID, nil
}
