package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/roach88/abeflag/internal/ir"
	"github.com/roach88/abeflag/internal/scenario"
)

// RedisRepository persists the scenario under one Redis key and keeps the
// most recent pass records in a capped list.
type RedisRepository struct {
	client     *backend.Client
	prefix     string
	key        string
	ttl        time.Duration
	keepPasses int64
}

var _ scenario.Repository = (*RedisRepository)(nil)

// RedisOption configures a RedisRepository.
type RedisOption func(*RedisRepository)

// WithRedisTTL sets the expiration of the scenario key. Zero keeps it forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *RedisRepository) { r.ttl = ttl }
}

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *RedisRepository) { r.prefix = prefix }
}

// WithPassRetention caps how many pass records are kept.
func WithPassRetention(n int64) RedisOption {
	return func(r *RedisRepository) {
		if n > 0 {
			r.keepPasses = n
		}
	}
}

// NewRedisRepository creates a repository for scenario key on client.
func NewRedisRepository(client *backend.Client, key string, opts ...RedisOption) *RedisRepository {
	if key == "" {
		key = DefaultScenarioKey
	}
	r := &RedisRepository{
		client:     client,
		prefix:     "abeflag:",
		key:        key,
		keepPasses: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*backend.Client, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *RedisRepository) scenarioKey() string {
	return r.prefix + "scenario:" + r.key
}

func (r *RedisRepository) passesKey() string {
	return r.prefix + "passes:" + r.key
}

func (r *RedisRepository) passIDsKey() string {
	return r.prefix + "pass_ids"
}

// Load retrieves the scenario.
func (r *RedisRepository) Load(ctx context.Context) (*ir.Scenario, error) {
	val, err := r.client.Get(ctx, r.scenarioKey()).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, scenario.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return ir.DecodeScenario(val)
}

// Save persists the scenario.
func (r *RedisRepository) Save(ctx context.Context, sc *ir.Scenario) error {
	data, err := ir.EncodeScenario(sc)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.scenarioKey(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Delete removes the scenario. Pass records are kept.
func (r *RedisRepository) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.scenarioKey()).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// PassStarting reserves passID in the set of ids shared by every scenario
// key, failing with ir.ErrPassExists when it was reserved before.
func (r *RedisRepository) PassStarting(ctx context.Context, passID string) error {
	added, err := r.client.SAdd(ctx, r.passIDsKey(), passID).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve pass id in redis: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("%w: %s", ir.ErrPassExists, passID)
	}
	return nil
}

// ModuleTransition is a no-op: Redis keeps pass summaries only.
func (r *RedisRepository) ModuleTransition(context.Context, ir.PassEvent) error {
	return nil
}

// PassFinished appends rec to the pass list and trims it to the retention cap.
func (r *RedisRepository) PassFinished(ctx context.Context, rec ir.PassRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal pass: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.passesKey(), data)
	pipe.LTrim(ctx, r.passesKey(), -r.keepPasses, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record pass in redis: %w", err)
	}
	return nil
}

// ListPasses returns retained pass records, oldest first.
func (r *RedisRepository) ListPasses(ctx context.Context) ([]ir.PassRecord, error) {
	vals, err := r.client.LRange(ctx, r.passesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list passes from redis: %w", err)
	}
	passes := make([]ir.PassRecord, 0, len(vals))
	for _, v := range vals {
		var rec ir.PassRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pass: %w", err)
		}
		passes = append(passes, rec)
	}
	return passes, nil
}
