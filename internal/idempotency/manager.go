// Package idempotency deduplicates work items that can be delivered more
// than once, such as Telegram updates redelivered after a long-poll
// timeout. The first delivery executes and caches its outcome; replays
// within the TTL get the cached outcome back without re-executing.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// ErrInProgress is returned when another worker currently holds the key.
var ErrInProgress = errors.New("operation with this key is already in progress")

// Operation is the unit of work guarded by a key.
type Operation func(ctx context.Context) (any, error)

// Result carries the operation outcome and whether it was replayed from
// the cache instead of executed.
type Result struct {
	Response  any
	FromCache bool
}

// Manager executes operations at most once per key within a TTL.
type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

// NewManager builds a Manager backed by the given store.
func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{store: store, log: log}
}

const (
	executionLockTTL = 5 * time.Minute
	pollInterval     = 100 * time.Millisecond
)

// Execute runs fn under key. If a completed record exists the cached
// response is returned. If another worker holds the execution lock,
// Execute waits for its record and then replays it; a worker that is
// still running when the record lookup happens yields ErrInProgress.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	for {
		locked, err := m.store.Lock(ctx, key, executionLockTTL)
		if err != nil {
			return nil, err
		}
		if locked {
			return m.runLocked(ctx, key, ttl, fn)
		}

		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		if record != nil {
			switch record.Status {
			case StatusProcessing:
				return nil, ErrInProgress
			case StatusCompleted:
				var response any
				if len(record.Response) > 0 {
					if err := json.Unmarshal(record.Response, &response); err != nil {
						return nil, err
					}
				}
				return &Result{Response: response, FromCache: true}, nil
			}
		}

		// Lock holder has not written its record yet; poll until it does
		// or the lock expires and we can take over.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (m *manager) runLocked(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	defer func() {
		if err := m.store.ReleaseLock(ctx, key); err != nil {
			m.log.Warn("failed to release execution lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	// A completed record outlives the execution lock; a redelivery that
	// re-acquires the lock must replay it, not run fn again.
	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil && record.Status == StatusCompleted {
		var response any
		if len(record.Response) > 0 {
			if err := json.Unmarshal(record.Response, &response); err != nil {
				return nil, err
			}
		}
		return &Result{Response: response, FromCache: true}, nil
	}

	result, err := fn(ctx)
	if err != nil {
		// Failed executions leave no record so the delivery can retry.
		return nil, err
	}

	responseBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{
		Status:   StatusCompleted,
		Response: responseBytes,
	}, ttl); err != nil {
		return nil, err
	}

	return &Result{Response: result, FromCache: false}, nil
}
