package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"imagebatch/internal/models"
)

// RedisArchive keeps finished jobs in Redis.
// Keys: job:<id> => JSON(JobRecord) with TTL; sorted set "jobs" indexes ids by finish time.
type RedisArchive struct {
	client *redis.Client
	ttl    time.Duration
	index  string
}

// NewRedisClient constructs a go-redis client
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// NewRedisArchive validates the connection and returns the archive
func NewRedisArchive(client *redis.Client, ttl time.Duration) (*RedisArchive, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Printf("✅ Job archive initialized: backend=redis, TTL=%v", ttl)
	return &RedisArchive{client: client, ttl: ttl, index: "jobs"}, nil
}

func (r *RedisArchive) jobKey(id string) string { return fmt.Sprintf("job:%s", id) }

// Save stores the record and indexes it
func (r *RedisArchive) Save(ctx context.Context, rec models.JobRecord) error {
	if rec.ID == "" {
		return errors.New("job record has no id")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.jobKey(rec.ID), b, r.ttl)
	pipe.ZAdd(ctx, r.index, redis.Z{Score: float64(finishedAt(rec).Unix()), Member: rec.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// Load fetches one record
func (r *RedisArchive) Load(ctx context.Context, id string) (models.JobRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := r.client.Get(ctx, r.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.JobRecord{}, fmt.Errorf("%w: %s", ErrNotArchived, id)
		}
		return models.JobRecord{}, err
	}

	var rec models.JobRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return models.JobRecord{}, err
	}
	return rec, nil
}

// List returns records newest first. Index members whose record expired are pruned.
func (r *RedisArchive) List(ctx context.Context, limit int) ([]models.JobRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.ZRevRange(ctx, r.index, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.jobKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	recs, stale, err := decodeRecords(ids, vals)
	if err != nil {
		return recs, err
	}

	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, r.index, stale...).Err(); err != nil {
			log.Printf("⚠️  Failed to prune archive index: %v", err)
		}
	}
	return recs, nil
}

// decodeRecords pairs MGET replies with their ids. A nil reply is an expired record and its
// id is returned as stale.
func decodeRecords(ids []string, vals []interface{}) ([]models.JobRecord, []interface{}, error) {
	if len(vals) != len(ids) {
		return nil, nil, fmt.Errorf("mget returned %d values for %d keys", len(vals), len(ids))
	}

	recs := make([]models.JobRecord, 0, len(ids))
	var stale []interface{}
	for i, v := range vals {
		var raw []byte
		switch val := v.(type) {
		case nil:
			stale = append(stale, ids[i])
			continue
		case string:
			raw = []byte(val)
		case []byte:
			raw = val
		default:
			return recs, stale, fmt.Errorf("unexpected mget value %T for %s", v, ids[i])
		}

		var rec models.JobRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return recs, stale, fmt.Errorf("failed to decode archived job %s: %w", ids[i], err)
		}
		recs = append(recs, rec)
	}
	return recs, stale, nil
}

// Stats reports the index size
func (r *RedisArchive) Stats() map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats := map[string]interface{}{
		"backend": "redis",
		"ttl_min": r.ttl.Minutes(),
	}
	if n, err := r.client.ZCard(ctx, r.index).Result(); err == nil {
		stats["entries"] = n
	} else {
		stats["error"] = err.Error()
	}
	return stats
}

// Close closes the client
func (r *RedisArchive) Close() error {
	return r.client.Close()
}
