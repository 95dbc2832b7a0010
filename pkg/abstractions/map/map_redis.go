package dmap

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/beam-cloud/redismap/pkg/common"
	"github.com/beam-cloud/redismap/pkg/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
)

const (
	defaultMaxSwapRetries = 5
	defaultLockRetries    = 20
	defaultLockTtl        = 10 * time.Second
)

// RedisMap is a Map backed by a single Redis hash. Values are stored as base-10
// strings and parsed back on every read.
type RedisMap struct {
	rdb      *common.RedisClient
	lock     *common.RedisLock
	hashKey  string
	config   types.MapConfig
	observer Observer
}

var _ Map = (*RedisMap)(nil)

type RedisMapOption func(*RedisMap)

func WithObserver(observer Observer) RedisMapOption {
	return func(m *RedisMap) {
		if observer != nil {
			m.observer = observer
		}
	}
}

func NewRedisMap(rdb *common.RedisClient, config types.MapConfig, opts ...RedisMapOption) (*RedisMap, error) {
	if config.HashKey == "" {
		return nil, types.ErrEmptyHashKey
	}

	switch config.SwapMode {
	case "":
		config.SwapMode = types.SwapModeNone
	case types.SwapModeNone, types.SwapModeOptimistic, types.SwapModeLock:
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSwapMode, config.SwapMode)
	}

	if config.MaxSwapRetries <= 0 {
		config.MaxSwapRetries = defaultMaxSwapRetries
	}
	if config.LockRetries <= 0 {
		config.LockRetries = defaultLockRetries
	}
	if config.LockTtl <= 0 {
		config.LockTtl = defaultLockTtl
	}

	m := &RedisMap{
		rdb:      rdb,
		hashKey:  config.HashKey,
		config:   config,
		observer: noopObserver{},
	}

	if config.SwapMode == types.SwapModeLock {
		m.lock = common.NewRedisLock(rdb)
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *RedisMap) HashKey() string {
	return m.hashKey
}

func (m *RedisMap) Size(ctx context.Context) (size int64, err error) {
	defer m.observe("size", time.Now(), &err)

	size, err = m.rdb.HLen(ctx, m.hashKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count fields <%v>: %w", m.hashKey, err)
	}

	return size, nil
}

func (m *RedisMap) IsEmpty(ctx context.Context) (bool, error) {
	size, err := m.Size(ctx)
	if err != nil {
		return false, err
	}

	return size == 0, nil
}

func (m *RedisMap) ContainsKey(ctx context.Context, field string) (exists bool, err error) {
	defer m.observe("contains_key", time.Now(), &err)

	exists, err = m.rdb.HExists(ctx, m.hashKey, field).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check field <%v/%v>: %w", m.hashKey, field, err)
	}

	return exists, nil
}

// ContainsValue reports whether any field decodes to value. A malformed value
// elsewhere in the hash does not hide a match, but is reported when there is
// no match.
func (m *RedisMap) ContainsValue(ctx context.Context, value int64) (found bool, err error) {
	defer m.observe("contains_value", time.Now(), &err)

	raws, err := m.rdb.HVals(ctx, m.hashKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to list values <%v>: %w", m.hashKey, err)
	}

	var decodeErr error
	for _, raw := range raws {
		v, err := m.decodeValue("", raw)
		if err != nil {
			if decodeErr == nil {
				decodeErr = err
			}
			continue
		}

		if v == value {
			return true, nil
		}
	}

	return false, decodeErr
}

func (m *RedisMap) Get(ctx context.Context, field string) (value int64, ok bool, err error) {
	defer m.observe("get", time.Now(), &err)

	raw, ok, err := m.fetch(ctx, m.rdb, field)
	if err != nil || !ok {
		return 0, false, err
	}

	value, err = m.decodeValue(field, raw)
	if err != nil {
		return 0, false, err
	}

	return value, true, nil
}

func (m *RedisMap) GetOrDefault(ctx context.Context, field string, fallback int64) (int64, error) {
	value, ok, err := m.Get(ctx, field)
	if err != nil {
		return 0, err
	}

	if !ok {
		return fallback, nil
	}

	return value, nil
}

// Put stores value under field and returns the value it replaced. The write
// happens even when the replaced value cannot be decoded; the decode error is
// returned afterwards.
func (m *RedisMap) Put(ctx context.Context, field string, value int64) (previous int64, existed bool, err error) {
	defer m.observe("put", time.Now(), &err)

	raw, existed, err := m.swap(ctx, field, func(ctx context.Context, w hashWriter) error {
		return w.HSet(ctx, m.hashKey, field, encodeValue(value)).Err()
	})
	if err != nil {
		return 0, false, err
	}

	return m.previous(field, raw, existed)
}

// Remove deletes field and returns the value it held. Removing an absent field
// is not an error.
func (m *RedisMap) Remove(ctx context.Context, field string) (previous int64, existed bool, err error) {
	defer m.observe("remove", time.Now(), &err)

	raw, existed, err := m.swap(ctx, field, func(ctx context.Context, w hashWriter) error {
		return w.HDel(ctx, m.hashKey, field).Err()
	})
	if err != nil {
		return 0, false, err
	}

	return m.previous(field, raw, existed)
}

// PutAll writes every entry with a single HSET.
func (m *RedisMap) PutAll(ctx context.Context, entries map[string]int64) (err error) {
	defer m.observe("put_all", time.Now(), &err)

	if len(entries) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(entries)*2)
	for field, value := range entries {
		values = append(values, field, encodeValue(value))
	}

	err = m.rdb.HSet(ctx, m.hashKey, values...).Err()
	if err != nil {
		return fmt.Errorf("failed to set fields <%v>: %w", m.hashKey, err)
	}

	return nil
}

// Clear deletes the hash key itself.
func (m *RedisMap) Clear(ctx context.Context) (err error) {
	defer m.observe("clear", time.Now(), &err)

	err = m.rdb.Del(ctx, m.hashKey).Err()
	if err != nil {
		return fmt.Errorf("failed to delete hash <%v>: %w", m.hashKey, err)
	}

	return nil
}

func (m *RedisMap) Keys(ctx context.Context) (keys []string, err error) {
	defer m.observe("keys", time.Now(), &err)

	keys, err = m.rdb.HKeys(ctx, m.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list fields <%v>: %w", m.hashKey, err)
	}

	if keys == nil {
		keys = []string{}
	}

	return keys, nil
}

func (m *RedisMap) Values(ctx context.Context) (values []int64, err error) {
	defer m.observe("values", time.Now(), &err)

	raws, err := m.rdb.HVals(ctx, m.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list values <%v>: %w", m.hashKey, err)
	}

	values = make([]int64, 0, len(raws))
	for _, raw := range raws {
		value, err := m.decodeValue("", raw)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	return values, nil
}

func (m *RedisMap) Entries(ctx context.Context) (entries map[string]int64, err error) {
	defer m.observe("entries", time.Now(), &err)

	raws, err := m.rdb.HGetAll(ctx, m.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get all fields <%v>: %w", m.hashKey, err)
	}

	entries = make(map[string]int64, len(raws))
	for field, raw := range raws {
		value, err := m.decodeValue(field, raw)
		if err != nil {
			return nil, err
		}

		entries[field] = value
	}

	return entries, nil
}

// ForEach calls visitor once per entry, in no particular order. The entries are
// fetched in full before the first call.
func (m *RedisMap) ForEach(ctx context.Context, visitor func(field string, value int64)) error {
	entries, err := m.Entries(ctx)
	if err != nil {
		return err
	}

	for field, value := range entries {
		visitor(field, value)
	}

	return nil
}

// All returns a sequence over a snapshot of the hash. Iteration order is
// arbitrary.
func (m *RedisMap) All(ctx context.Context) (iter.Seq2[string, int64], error) {
	entries, err := m.Entries(ctx)
	if err != nil {
		return nil, err
	}

	return func(yield func(string, int64) bool) {
		for field, value := range entries {
			if !yield(field, value) {
				return
			}
		}
	}, nil
}

func (m *RedisMap) Equal(ctx context.Context, other map[string]int64) (bool, error) {
	entries, err := m.Entries(ctx)
	if err != nil {
		return false, err
	}

	return maps.Equal(entries, other), nil
}

type hashReader interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func (m *RedisMap) fetch(ctx context.Context, r hashReader, field string) (string, bool, error) {
	raw, err := r.HGet(ctx, m.hashKey, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to get field <%v/%v>: %w", m.hashKey, field, err)
	}

	return raw, true, nil
}

func (m *RedisMap) previous(field, raw string, existed bool) (int64, bool, error) {
	if !existed {
		return 0, false, nil
	}

	value, err := m.decodeValue(field, raw)
	if err != nil {
		return 0, false, err
	}

	return value, true, nil
}

func (m *RedisMap) decodeValue(field, raw string) (int64, error) {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &types.ErrDecode{HashKey: m.hashKey, Field: field, Raw: raw, Err: err}
	}

	return value, nil
}

func encodeValue(value int64) string {
	return strconv.FormatInt(value, 10)
}

func (m *RedisMap) observe(op string, start time.Time, err *error) {
	elapsed := time.Since(start)
	m.observer.ObserveOperation(op, elapsed, *err)

	log.Debug().
		Str("hash_key", m.hashKey).
		Str("op", op).
		Dur("duration", elapsed).
		Err(*err).
		Msg("map operation")
}
