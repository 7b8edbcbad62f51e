// Package lock provides MySQL advisory locking so that only one goask
// process rebuilds the index at a time.
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// RefreshTimeout is how long, in seconds, a refresh waits for another
// instance's refresh to finish.
const RefreshTimeout = 30

// AdvisoryLock is a named MySQL lock taken with GET_LOCK().
//
// GET_LOCK is scoped to a session, so the lock pins one connection from the
// pool for as long as it is held and releases on that same connection.
type AdvisoryLock struct {
	db       *sql.DB
	lockName string
	conn     *sql.Conn
}

// NewAdvisoryLock creates a new advisory lock with the given name.
// The lock is not acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		db:       db,
		lockName: lockName,
	}
}

// AcquireLock attempts to acquire the lock, waiting up to timeoutSeconds.
// Returns true if the lock was acquired, false if timeout was reached.
//
// MySQL GET_LOCK() return values:
//   - 1: Lock was obtained successfully
//   - 0: Timeout was reached without obtaining the lock
//   - NULL: An error occurred (e.g., out of memory, thread killed)
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.IsHeld() {
		return true, nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve connection for lock %q: %w", a.lockName, err)
	}

	var result sql.NullInt64
	err = conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.lockName, timeoutSeconds).Scan(&result)
	if err != nil {
		conn.Close()
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	if !result.Valid {
		conn.Close()
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q (possible database error)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.conn = conn
		return true, nil
	case 0:
		conn.Close()
		return false, nil
	default:
		conn.Close()
		return false, fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// ReleaseLock releases the lock and returns its connection to the pool.
// Returns false if the lock was not held.
//
// MySQL RELEASE_LOCK() return values:
//   - 1: Lock was released successfully
//   - 0: Lock was not established by this session
//   - NULL: Named lock did not exist
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.IsHeld() {
		return false, nil
	}

	conn := a.conn
	a.conn = nil
	defer conn.Close()

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.lockName).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}

	if !result.Valid {
		return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.lockName)
	}
	return result.Int64 == 1, nil
}

// IsHeld returns true if this lock is currently held by this instance.
func (a *AdvisoryLock) IsHeld() bool {
	return a.conn != nil
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// IsUsed reports whether any session currently holds the lock.
func (a *AdvisoryLock) IsUsed(ctx context.Context) (bool, error) {
	var owner sql.NullInt64
	if err := a.db.QueryRowContext(ctx, "SELECT IS_USED_LOCK(?)", a.lockName).Scan(&owner); err != nil {
		return false, fmt.Errorf("failed to execute IS_USED_LOCK: %w", err)
	}
	return owner.Valid, nil
}

// WithLock executes fn while holding the lock. The lock is released even if
// fn panics.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		// Release on a fresh context; ctx may already be canceled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Closing the connection drops the lock server-side if this fails.
		_, _ = a.ReleaseLock(releaseCtx)
	}()

	return fn()
}

// RefreshLockName creates the lock name guarding index refreshes for an
// index location: "goask:refresh:" followed by a hash of the absolute path,
// so every working directory names the same index the same way and the
// name stays within MySQL's 64 character limit.
func RefreshLockName(scope string) string {
	if abs, err := filepath.Abs(scope); err == nil {
		scope = abs
	}
	sum := sha256.Sum256([]byte(scope))
	return "goask:refresh:" + hex.EncodeToString(sum[:16])
}

// NewRefreshLock creates the advisory lock guarding index refreshes.
func NewRefreshLock(db *sql.DB, scope string) *AdvisoryLock {
	return NewAdvisoryLock(db, RefreshLockName(scope))
}
