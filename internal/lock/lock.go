// Package lock serializes scheduling runs that touch the same weeks.
package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Freeeeeet/training_scheduler/internal/calendar"
)

const keyPrefix = "schedule:week:"

// ReleaseFunc gives a held lock back.
type ReleaseFunc func(ctx context.Context) error

// Locker hands out exclusive locks by key. Acquire blocks until the lock is
// free or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// WeekKeys returns one lock key per ISO week touched by [start, end].
func WeekKeys(start, end time.Time) []string {
	weeks := calendar.ISOWeeks(start, end)
	keys := make([]string, 0, len(weeks))
	for _, w := range weeks {
		keys = append(keys, keyPrefix+w)
	}
	return keys
}

// AcquireAll takes every key in ascending order, so two callers with
// overlapping key sets cannot deadlock. On failure the keys already taken are
// released again.
func AcquireAll(ctx context.Context, l Locker, keys []string) (ReleaseFunc, error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]ReleaseFunc, 0, len(sorted))
	releaseAll := func(ctx context.Context) error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		held = held[:0]
		return errors.Join(errs...)
	}

	for _, key := range sorted {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			// ctx may already be done, give the release its own deadline
			cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			relErr := releaseAll(cleanup)
			cancel()
			return nil, errors.Join(fmt.Errorf("acquire %s: %w", key, err), relErr)
		}
		held = append(held, release)
	}
	return releaseAll, nil
}
