package dmap

import (
	"context"
	"fmt"

	"github.com/beam-cloud/redismap/pkg/common"
	"github.com/beam-cloud/redismap/pkg/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type hashWriter interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
}

type writeFunc func(ctx context.Context, w hashWriter) error

// swap reads the current raw value of field and then applies write. How the
// two steps are isolated from other writers depends on the configured mode.
func (m *RedisMap) swap(ctx context.Context, field string, write writeFunc) (string, bool, error) {
	switch m.config.SwapMode {
	case types.SwapModeOptimistic:
		return m.swapOptimistic(ctx, field, write)
	case types.SwapModeLock:
		return m.swapLocked(ctx, field, write)
	default:
		return m.swapUnguarded(ctx, field, write)
	}
}

// Another client may write between the HGET and the write. Its value is then
// either lost or reported as ours.
func (m *RedisMap) swapUnguarded(ctx context.Context, field string, write writeFunc) (string, bool, error) {
	raw, existed, err := m.fetch(ctx, m.rdb, field)
	if err != nil {
		return "", false, err
	}

	if err := write(ctx, m.rdb); err != nil {
		return "", false, fmt.Errorf("failed to write field <%v/%v>: %w", m.hashKey, field, err)
	}

	return raw, existed, nil
}

func (m *RedisMap) swapOptimistic(ctx context.Context, field string, write writeFunc) (string, bool, error) {
	var (
		raw     string
		existed bool
	)

	txf := func(tx *redis.Tx) error {
		var err error
		raw, existed, err = m.fetch(ctx, tx, field)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return write(ctx, pipe)
		})
		return err
	}

	for attempt := 1; attempt <= m.config.MaxSwapRetries; attempt++ {
		err := m.rdb.Watch(ctx, txf, m.hashKey)
		if err == nil {
			return raw, existed, nil
		}

		if err != redis.TxFailedErr {
			return "", false, fmt.Errorf("failed to write field <%v/%v>: %w", m.hashKey, field, err)
		}

		log.Debug().Str("hash_key", m.hashKey).Str("field", field).Int("attempt", attempt).Msg("hash changed during swap, retrying")
	}

	return "", false, fmt.Errorf("failed to write field <%v/%v> after %d attempts: %w", m.hashKey, field, m.config.MaxSwapRetries, types.ErrSwapConflict)
}

// Only excludes writers that take the same lock.
func (m *RedisMap) swapLocked(ctx context.Context, field string, write writeFunc) (string, bool, error) {
	var (
		raw     string
		existed bool
	)

	opts := common.RedisLockOptions{Ttl: m.config.LockTtl, Retries: m.config.LockRetries}
	err := m.lock.WithLock(ctx, common.RedisKeys.MapLock(m.hashKey), opts, func() error {
		var err error
		raw, existed, err = m.swapUnguarded(ctx, field, write)
		return err
	})
	if err != nil {
		return "", false, err
	}

	return raw, existed, nil
}
