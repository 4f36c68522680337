package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/moneytrail/apiserver/types"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 2 * time.Minute

	// generationTTL only has to outlive the slowest summary computation.
	generationTTL = 24 * time.Hour
)

var errStale = errors.New("dashboard generation changed")

// Redis caches summaries as JSON strings with a fixed TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to redisURL, which may be a redis:// url or a bare host:port.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, userID string) (types.DashboardSummary, bool, error) {
	data, err := r.client.Get(ctx, dashboardKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.DashboardSummary{}, false, nil
	}
	if err != nil {
		return types.DashboardSummary{}, false, err
	}

	summary, err := decodeSummary(data)
	if err != nil {
		return types.DashboardSummary{}, false, err
	}
	return summary, true, nil
}

func (r *Redis) Generation(ctx context.Context, userID string) (int64, error) {
	return generationOf(ctx, r.client, userID)
}

// Set writes the summary inside a WATCH on the generation key, so a concurrent
// Invalidate either lands before the check or aborts the write.
func (r *Redis) Set(ctx context.Context, userID string, gen int64, summary types.DashboardSummary) error {
	data, err := encodeSummary(summary)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generationOf(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dashboardKey(userID), data, r.ttl)
			return nil
		})
		return err
	}, generationKey(userID))
	if errors.Is(err, errStale) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (r *Redis) Invalidate(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(userID))
		pipe.Expire(ctx, generationKey(userID), generationTTL)
		pipe.Del(ctx, dashboardKey(userID))
		return nil
	})
	return err
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generationOf(ctx context.Context, c stringGetter, userID string) (int64, error) {
	gen, err := c.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func encodeSummary(summary types.DashboardSummary) ([]byte, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

func decodeSummary(data []byte) (types.DashboardSummary, error) {
	var summary types.DashboardSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return types.DashboardSummary{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return summary, nil
}
