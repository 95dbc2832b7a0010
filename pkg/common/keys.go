package common

import (
	"fmt"
)

var (
	mapLock string = "redismap:lock:%s"
)

var RedisKeys = &redisKeys{}

type redisKeys struct{}

// MapLock is the lock guarding read-then-write sequences on one hash.
// The hash key is wrapped in a hash tag so the lock lands on the same cluster
// slot as the hash itself.
func (rk *redisKeys) MapLock(hashKey string) string {
	return fmt.Sprintf(mapLock, "{"+hashKey+"}")
}
