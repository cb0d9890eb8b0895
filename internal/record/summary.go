package record

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSummary keeps per-day present counts keyed by subject and period.
// The worker bumps it as records are archived; the summary endpoint reads
// it. Counts are advisory, the sink stays the source of truth.
type RedisSummary struct {
	client *redis.Client
}

// NewRedisSummary wraps a redis client.
func NewRedisSummary(client *redis.Client) *RedisSummary {
	return &RedisSummary{client: client}
}

func summaryKey(date string) string {
	return "attendance:summary:" + date
}

// Bump increments the present counter for (date, subject, period).
func (s *RedisSummary) Bump(ctx context.Context, rec Record) error {
	field := rec.SubjectID + "|" + strconv.Itoa(rec.Period)
	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, summaryKey(rec.Date), field, 1)
	pipe.Expire(ctx, summaryKey(rec.Date), 40*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot returns the counters for a date as subject|period -> count.
func (s *RedisSummary) Snapshot(ctx context.Context, date string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, summaryKey(date)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}
