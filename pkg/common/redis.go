package common

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/beam-cloud/redismap/pkg/types"
	"github.com/bsm/redislock"
	"github.com/cenkalti/backoff"
	"github.com/go-viper/mapstructure/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	ErrConnectionIssue  = errors.New("redis: connection issue")
	ErrUnknownRedisMode = errors.New("redis: unknown mode")
)

type RedisClient struct {
	redis.UniversalClient
}

func WithClientName(name string) func(*redis.UniversalOptions) {
	// Remove empty spaces and new lines
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "\n", "")

	// Remove special characters using a regular expression
	reg := regexp.MustCompile("[^a-zA-Z0-9]+")
	name = reg.ReplaceAllString(name, "")

	return func(uo *redis.UniversalOptions) {
		uo.ClientName = name
	}
}

func NewRedisClient(config types.RedisConfig, options ...func(*redis.UniversalOptions)) (*RedisClient, error) {
	client, err := newUniversalClient(config, options...)
	if err != nil {
		return nil, err
	}

	err = client.Ping(context.TODO()).Err()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s", ErrConnectionIssue, err)
	}

	return &RedisClient{UniversalClient: client}, nil
}

// NewRedisClientWithRetry dials until the first successful ping or until the
// configured number of retries is spent.
func NewRedisClientWithRetry(ctx context.Context, config types.RedisConfig, connect types.ConnectConfig, options ...func(*redis.UniversalOptions)) (*RedisClient, error) {
	var rdb *RedisClient

	operation := func() error {
		client, err := NewRedisClient(config, options...)
		if err != nil {
			if errors.Is(err, ErrUnknownRedisMode) {
				return backoff.Permanent(err)
			}
			return err
		}

		rdb = client
		return nil
	}

	interval := connect.Interval
	if interval <= 0 {
		interval = time.Second
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), connect.Retries), ctx)
	err := backoff.RetryNotify(operation, b, func(err error, next time.Duration) {
		log.Warn().Err(err).Strs("addrs", config.Addrs).Dur("retry_in", next).Msg("redis not reachable, retrying")
	})
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func newUniversalClient(config types.RedisConfig, options ...func(*redis.UniversalOptions)) (redis.UniversalClient, error) {
	opts := &redis.UniversalOptions{}
	if err := CopyStruct(&config, opts); err != nil {
		return nil, err
	}

	for _, opt := range options {
		opt(opts)
	}

	if config.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		}
	}

	switch config.Mode {
	case types.RedisModeSingle:
		return redis.NewClient(opts.Simple()), nil
	case types.RedisModeCluster:
		return redis.NewClusterClient(opts.Cluster()), nil
	default:
		return nil, ErrUnknownRedisMode
	}
}

// IsStoreUnavailable reports whether err means the store could not be reached
// or did not answer in time, as opposed to a command-level failure.
func IsStoreUnavailable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrConnectionIssue) || errors.Is(err, redis.ErrClosed) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

type RedisLockOptions struct {
	Ttl     time.Duration
	Retries int
}

// RedisLock serializes critical sections across processes sharing a Redis.
type RedisLock struct {
	client *redislock.Client
}

func NewRedisLock(client *RedisClient) *RedisLock {
	return &RedisLock{client: redislock.New(client)}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, opts RedisLockOptions) (*redislock.Lock, error) {
	var retryStrategy redislock.RetryStrategy = nil
	if opts.Retries > 0 {
		retryStrategy = redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), opts.Retries)
	}

	ttl := opts.Ttl
	if ttl <= 0 {
		ttl = 10 * time.Second
	}

	return l.client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: retryStrategy,
	})
}

// WithLock runs fn while holding the lock named by key. The lock is released on
// every exit path; a release failure is only reported when fn succeeded.
func (l *RedisLock) WithLock(ctx context.Context, key string, opts RedisLockOptions, fn func() error) (err error) {
	lock, err := l.Acquire(ctx, key, opts)
	if err != nil {
		return fmt.Errorf("failed to acquire lock <%v>: %w", key, err)
	}

	defer func() {
		releaseErr := lock.Release(context.Background())
		if releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			log.Error().Err(releaseErr).Str("key", key).Msg("failed to release lock")
			if err == nil {
				err = releaseErr
			}
		}
	}()

	return fn()
}

func CopyStruct(src, dst any) error {
	config := mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           dst,
	}

	decoder, err := mapstructure.NewDecoder(&config)
	if err != nil {
		return err
	}

	if err := decoder.Decode(src); err != nil {
		return err
	}

	return nil
}
