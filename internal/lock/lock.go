// Package lock serializes ledger mutations per user. Two events for the
// same user must never race on read-modify-write sequences; events for
// different users proceed fully concurrently.
package lock

import (
	"context"
	"strconv"
)

// Locker acquires an exclusive lock for a key and returns the release
// function. Acquire blocks until the lock is held or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// UserKey renders the canonical lock key for a user id.
func UserKey(userID int64) string {
	return "user:lock:" + strconv.FormatInt(userID, 10)
}
