package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/beam-cloud/redismap/pkg/types"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func NewRedisClientForTest() (*RedisClient, error) {
	s, err := miniredis.Run()
	if err != nil {
		return nil, err
	}

	return NewRedisClient(types.RedisConfig{Addrs: []string{s.Addr()}, Mode: types.RedisModeSingle})
}

func TestNewRedisClientUnknownMode(t *testing.T) {
	_, err := NewRedisClient(types.RedisConfig{Addrs: []string{"localhost:0"}, Mode: "sentinel"})
	assert.ErrorIs(t, err, ErrUnknownRedisMode)
}

func TestNewRedisClientConnectionIssue(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisClient(types.RedisConfig{Addrs: []string{addr}, Mode: types.RedisModeSingle, MaxRetries: -1})
	assert.ErrorIs(t, err, ErrConnectionIssue)
	assert.True(t, IsStoreUnavailable(err))
}

func TestNewRedisClientWithRetry(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	addr := "127.0.0.1:0"

	// Nothing is listening yet; give up after the configured retries
	_, err := NewRedisClientWithRetry(context.Background(), types.RedisConfig{Addrs: []string{addr}, Mode: types.RedisModeSingle, MaxRetries: -1}, types.ConnectConfig{Retries: 1, Interval: 10 * time.Millisecond})
	assert.ErrorIs(t, err, ErrConnectionIssue)

	require.NoError(t, mr.Start())
	defer mr.Close()

	rdb, err := NewRedisClientWithRetry(context.Background(), types.RedisConfig{Addrs: []string{mr.Addr()}, Mode: types.RedisModeSingle}, types.ConnectConfig{Retries: 3, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer rdb.Close()

	assert.NoError(t, rdb.Ping(context.Background()).Err())
}

func TestNewRedisClientWithRetryPermanentError(t *testing.T) {
	start := time.Now()
	_, err := NewRedisClientWithRetry(context.Background(), types.RedisConfig{Mode: "bogus"}, types.ConnectConfig{Retries: 50, Interval: time.Second})
	assert.ErrorIs(t, err, ErrUnknownRedisMode)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIsStoreUnavailable(t *testing.T) {
	assert.False(t, IsStoreUnavailable(nil))
	assert.False(t, IsStoreUnavailable(redis.Nil))
	assert.False(t, IsStoreUnavailable(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")))
	assert.True(t, IsStoreUnavailable(redis.ErrClosed))
	assert.True(t, IsStoreUnavailable(context.DeadlineExceeded))
}

func TestRedisLock(t *testing.T) {
	rdb, err := NewRedisClientForTest()
	assert.NotNil(t, rdb)
	assert.NoError(t, err)

	lock := NewRedisLock(rdb)

	key := "test_key"
	opts := RedisLockOptions{Ttl: 10 * time.Second, Retries: 2}

	// Test acquiring lock
	held, err := lock.Acquire(context.Background(), key, opts)
	assert.NoError(t, err)

	// Test acquiring lock again without releasing
	_, err = lock.Acquire(context.Background(), key, opts)
	assert.ErrorIs(t, err, redislock.ErrNotObtained)

	// Test releasing lock
	err = held.Release(context.Background())
	assert.NoError(t, err)

	// Test acquiring lock after releasing
	_, err = lock.Acquire(context.Background(), key, RedisLockOptions{Ttl: 2 * time.Second, Retries: 0})
	assert.NoError(t, err)
}

func TestRedisLockWithLock(t *testing.T) {
	rdb, err := NewRedisClientForTest()
	require.NoError(t, err)

	lock := NewRedisLock(rdb)
	ctx := context.Background()
	key := RedisKeys.MapLock("hash")

	ran := false
	err = lock.WithLock(ctx, key, RedisLockOptions{}, func() error {
		ran = true

		exists, err := rdb.Exists(ctx, key).Result()
		assert.NoError(t, err)
		assert.Equal(t, int64(1), exists)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// Released after a failing critical section too
	boom := errors.New("boom")
	err = lock.WithLock(ctx, key, RedisLockOptions{}, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	exists, err := rdb.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestRedisLockWithTTLAndRetry(t *testing.T) {
	rdb, err := NewRedisClientForTest()
	assert.NotNil(t, rdb)
	assert.NoError(t, err)

	firstLock := NewRedisLock(rdb)
	secondLock := NewRedisLock(rdb)

	key := "test_key"
	held, err := firstLock.Acquire(context.Background(), key, RedisLockOptions{Ttl: time.Second, Retries: 0})
	assert.NoError(t, err)

	resultCh := make(chan error)

	// Second lock retries until the first one is released.
	// miniredis does not expire keys on its own, so release explicitly.
	go func() {
		_, err := secondLock.Acquire(context.Background(), key, RedisLockOptions{Ttl: 10 * time.Second, Retries: 5})
		resultCh <- err
	}()

	time.Sleep(time.Millisecond * 200)

	err = held.Release(context.Background())
	assert.NoError(t, err)

	err = <-resultCh
	assert.NoError(t, err)
}

func TestWithClientName(t *testing.T) {
	opts1 := &redis.UniversalOptions{}
	WithClientName("redismap")(opts1)
	assert.Equal(t, "redismap", opts1.ClientName)

	opts2 := &redis.UniversalOptions{}
	WithClientName("My ^ App $")(opts2)
	assert.Equal(t, "MyApp", opts2.ClientName)

	opts3 := &redis.UniversalOptions{}
	WithClientName("  g /.\\ []o]  o  ! @   #d---n$% ^&a*()m-_=e+ ")(opts3)
	assert.Equal(t, "goodname", opts3.ClientName)
}

func TestCopyStruct(t *testing.T) {
	config := types.RedisConfig{
		Addrs:           []string{"redis1:6379", "redis2:6379"},
		Mode:            types.RedisModeCluster,
		ClientName:      "hello",
		PoolSize:        10,
		MaxRedirects:    4,
		ConnMaxLifetime: time.Second,
		ReadTimeout:     2 * time.Second,
		Username:        "user",
		RouteByLatency:  true,
	}
	opts := &redis.UniversalOptions{}

	err := CopyStruct(&config, opts)
	require.NoError(t, err)

	assert.Equal(t, config.Addrs, opts.Addrs)
	assert.Equal(t, "hello", opts.ClientName)
	assert.Equal(t, 10, opts.PoolSize)
	assert.Equal(t, 4, opts.MaxRedirects)
	assert.Equal(t, time.Second, opts.ConnMaxLifetime)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, "user", opts.Username)
	assert.True(t, opts.RouteByLatency)
}

func TestRedisClientSetAndGet(t *testing.T) {
	rdb, err := NewRedisClientForTest()
	assert.NotNil(t, rdb)
	assert.NoError(t, err)
	defer rdb.Close()

	ctx := context.Background()
	key := uuid.New().String()
	val := uuid.New().String()

	err = rdb.HSet(ctx, key, "field", val).Err()
	assert.NoError(t, err)

	res, err := rdb.HGet(ctx, key, "field").Result()
	assert.NoError(t, err)
	assert.Equal(t, val, res)
}
