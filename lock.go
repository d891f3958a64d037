package ledgrator

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
)

// Locker provides mutual exclusion for a migration run across processes.
type Locker interface {
	// Acquire obtains the lock for key. The returned release function must be
	// called to release it.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// NewLocker returns the advisory lock matching the client's driver.
func NewLocker(c *Client) Locker {
	switch c.DriverName() {
	case "postgres":
		return NewPostgresLock(c.DB())
	case "mysql":
		return NewMySQLLock(c.DB())
	default:
		return NewProcessLock()
	}
}

// PostgresLock uses a session-level pg_advisory_lock held on a dedicated
// connection until release.
type PostgresLock struct {
	db *sql.DB
}

func NewPostgresLock(db *sql.DB) *PostgresLock {
	return &PostgresLock{db: db}
}

func (l *PostgresLock) Acquire(ctx context.Context, key string) (func(), error) {
	lockID := hashLockKey(key)

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pg_advisory_lock(%d): %w", lockID, err)
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
		_ = conn.Close()
	}
	return release, nil
}

// MySQLLock uses GET_LOCK on a dedicated connection. Timeout is in seconds;
// a negative value waits forever.
type MySQLLock struct {
	db      *sql.DB
	Timeout int
}

func NewMySQLLock(db *sql.DB) *MySQLLock {
	return &MySQLLock{db: db, Timeout: -1}
}

func (l *MySQLLock) Acquire(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, key, l.Timeout).Scan(&got); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("GET_LOCK(%s): %w", key, err)
	}
	if !got.Valid || got.Int64 != 1 {
		_ = conn.Close()
		return nil, fmt.Errorf("GET_LOCK(%s): lock not granted", key)
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, key)
		_ = conn.Close()
	}
	return release, nil
}

// ProcessLock is an in-process mutex. SQLite's own file locking covers other
// processes.
type ProcessLock struct {
	mu sync.Mutex
}

func NewProcessLock() *ProcessLock {
	return &ProcessLock{}
}

func (l *ProcessLock) Acquire(ctx context.Context, _ string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire process lock: %w", err)
	}
	l.mu.Lock()
	return func() { l.mu.Unlock() }, nil
}

// hashLockKey produces a stable int64 from key for pg_advisory_lock.
func hashLockKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}
