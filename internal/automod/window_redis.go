package automod

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisWindowPrefix = "warden/spam/"

// RedisWindowStore keeps each window as a sorted set scored by milliseconds,
// so several bot processes can share spam windows.
type RedisWindowStore struct {
	Client *redis.Client
	limit  int
	seq    atomic.Uint64
}

var _ WindowStore = (*RedisWindowStore)(nil)

func NewRedisWindowStore(redisURL string, limit int) (*RedisWindowStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisWindowStore{
		Client: rdb,
		limit:  limit,
	}, nil
}

func (s *RedisWindowStore) Observe(ctx context.Context, key string, now time.Time, timeframe time.Duration) (int, error) {
	k := redisWindowPrefix + key
	nowMs := now.UnixMilli()
	// members must be unique even for messages within the same millisecond
	member := strconv.FormatInt(now.UnixNano(), 36) + "-" + strconv.FormatUint(s.seq.Add(1), 36)
	cutoff := strconv.FormatInt(nowMs-timeframe.Milliseconds(), 10)

	// append, prune and count in a single round-trip
	multi := s.Client.TxPipeline()
	multi.ZAdd(ctx, k, redis.Z{Score: float64(nowMs), Member: member})
	multi.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	if s.limit > 0 {
		multi.ZRemRangeByRank(ctx, k, 0, int64(-s.limit-1))
	}
	card := multi.ZCard(ctx, k)
	multi.PExpire(ctx, k, timeframe)

	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

func (s *RedisWindowStore) Close() error {
	return s.Client.Close()
}
