package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchedulerLockKey — ключ advisory lock лидера планировщика.
const SchedulerLockKey int64 = 424242

// AdvisoryLock — сессионный pg_advisory_lock на отдельном соединении.
//
// Блокировка живёт, пока живо соединение, поэтому оно удерживается
// из пула до Release.
type AdvisoryLock struct {
	pool *pgxpool.Pool
	key  int64
	conn *pgxpool.Conn
}

// NewAdvisoryLock создаёт блокировку с ключом key.
func NewAdvisoryLock(pool *pgxpool.Pool, key int64) *AdvisoryLock {
	return &AdvisoryLock{pool: pool, key: key}
}

// TryAcquire пытается взять блокировку, не ожидая.
func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return true, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release снимает блокировку и возвращает соединение в пул.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Release()
		l.conn = nil
	}()

	if _, err := l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}
