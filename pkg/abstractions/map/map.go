package dmap

import (
	"context"
	"iter"
	"time"

	"golang.org/x/exp/maps"
)

// Map is an associative container of string fields and integer values whose
// contents live somewhere other than process memory. Every call goes to the
// backing store; nothing is cached.
//
// A missing field is reported through the ok/existed results, never as an
// error and never as a zero value.
type Map interface {
	Size(ctx context.Context) (int64, error)
	IsEmpty(ctx context.Context) (bool, error)
	ContainsKey(ctx context.Context, field string) (bool, error)
	// ContainsValue transfers every value in the map. O(n) per call.
	ContainsValue(ctx context.Context, value int64) (bool, error)

	Get(ctx context.Context, field string) (value int64, ok bool, err error)
	GetOrDefault(ctx context.Context, field string, fallback int64) (int64, error)
	Put(ctx context.Context, field string, value int64) (previous int64, existed bool, err error)
	Remove(ctx context.Context, field string) (previous int64, existed bool, err error)
	PutAll(ctx context.Context, entries map[string]int64) error
	Clear(ctx context.Context) error

	Keys(ctx context.Context) ([]string, error)
	Values(ctx context.Context) ([]int64, error)
	Entries(ctx context.Context) (map[string]int64, error)
	ForEach(ctx context.Context, visitor func(field string, value int64)) error
	All(ctx context.Context) (iter.Seq2[string, int64], error)

	Equal(ctx context.Context, other map[string]int64) (bool, error)
}

// Observer is told about every completed map operation.
type Observer interface {
	ObserveOperation(op string, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, time.Duration, error) {}

// EqualMaps compares the full entry sets of two maps. Both sides are
// transferred in full.
func EqualMaps(ctx context.Context, a, b Map) (bool, error) {
	left, err := a.Entries(ctx)
	if err != nil {
		return false, err
	}

	right, err := b.Entries(ctx)
	if err != nil {
		return false, err
	}

	return maps.Equal(left, right), nil
}
