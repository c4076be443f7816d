/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "numberduel:active_users:"
	presenceTimeout   = 2 * time.Second
	minPresenceTTL    = 5 * time.Second
)

// Counter tracks how many clients are connected. It lives outside the lobby
// so that a slow backend never holds up pairing.
type Counter interface {
	Incr(ctx context.Context) (int64, error)
	Decr(ctx context.Context) (int64, error)
	// Heartbeat publishes this process's count where other replicas can see it.
	Heartbeat(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

type memoryCounter struct {
	n atomic.Int64
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{}
}

func (m *memoryCounter) Incr(context.Context) (int64, error) {
	return m.n.Add(1), nil
}

func (m *memoryCounter) Decr(context.Context) (int64, error) {
	return m.n.Add(-1), nil
}

func (m *memoryCounter) Heartbeat(context.Context) error {
	return nil
}

func (m *memoryCounter) Count(context.Context) (int64, error) {
	return m.n.Load(), nil
}

// redisCounter keeps its own clients in memory and mirrors that number to a
// per-replica key with a TTL. Count sums the live keys, so a replica that
// dies without cleaning up drops out once its key expires.
type redisCounter struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	local atomic.Int64
}

func newRedisCounter(url string, ttl time.Duration) (*redisCounter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, err
	}

	return newRedisCounterWithClient(client, ttl), nil
}

func newRedisCounterWithClient(client *redis.Client, ttl time.Duration) *redisCounter {
	return &redisCounter{
		client: client,
		key:    presenceKeyPrefix + uuid.NewString(),
		ttl:    ttl,
	}
}

// Incr and Decr never talk to redis, so an outage cannot skew the count.
func (r *redisCounter) Incr(context.Context) (int64, error) {
	return r.local.Add(1), nil
}

func (r *redisCounter) Decr(context.Context) (int64, error) {
	return r.local.Add(-1), nil
}

func (r *redisCounter) Heartbeat(ctx context.Context) error {
	return r.client.Set(ctx, r.key, r.local.Load(), r.ttl).Err()
}

func (r *redisCounter) Count(ctx context.Context) (int64, error) {
	var keys []string

	iter := r.client.Scan(ctx, 0, presenceKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, v := range vals {
		// nil when the key expired between SCAN and MGET
		s, ok := v.(string)
		if !ok {
			continue
		}

		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}

		total += n
	}

	return total, nil
}

// Close removes this replica's key and closes the client.
func (r *redisCounter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	return errors.Join(r.client.Del(ctx, r.key).Err(), r.client.Close())
}

func presenceTTL(cfg *Config) time.Duration {
	return max(3*cfg.broadcastInterval, minPresenceTTL)
}

func newCounter(cfg *Config) (Counter, error) {
	if cfg.redisURL == "" {
		return newMemoryCounter(), nil
	}

	return newRedisCounter(cfg.redisURL, presenceTTL(cfg))
}

// countPresence applies one Incr or Decr and reports whether it took effect.
func countPresence(cfg *Config, fn func(context.Context) (int64, error)) bool {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	if _, err := fn(ctx); err != nil {
		logf(cfg, "ERROR: Updating active user count: %v", err)

		return false
	}

	return true
}

// runPresence posts the active user count into the lobby on every tick until
// ctx is cancelled.
func runPresence(ctx context.Context, cfg *Config, counter Counter, lobby *Lobby) {
	ticker := time.NewTicker(cfg.broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, presenceTimeout)
			if err := counter.Heartbeat(tickCtx); err != nil {
				logf(cfg, "ERROR: Publishing active user count: %v", err)
			}
			n, err := counter.Count(tickCtx)
			cancel()

			if err != nil {
				logf(cfg, "ERROR: Reading active user count: %v", err)

				continue
			}

			lobby.Broadcast(eventActiveUsers, n)
		}
	}
}
