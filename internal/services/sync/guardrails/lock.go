package guardrails

import (
	"context"
	"errors"
	"sync/atomic"

	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/platform/store"
)

// ErrBusy signals another pass holds the lock
var ErrBusy = perr.Conflictf("sync: a pass is already running")

// LockFunc runs do while holding the pass lock, or returns ErrBusy
type LockFunc func(ctx context.Context, do func(context.Context) error) error

// LocalLock guards against overlapping passes inside one process
func LocalLock() LockFunc {
	var running atomic.Bool
	return func(ctx context.Context, do func(context.Context) error) error {
		if !running.CompareAndSwap(false, true) {
			return ErrBusy
		}
		defer running.Store(false)
		return do(ctx)
	}
}

// AdvisoryLock takes a Postgres session advisory lock on key for the
// duration of do, so passes never overlap across processes either.
// The lock is released on the same pinned connection.
func AdvisoryLock(db store.TxRunner, key int64) LockFunc {
	local := LocalLock()
	return func(ctx context.Context, do func(context.Context) error) error {
		return local(ctx, func(ctx context.Context) error {
			return db.Session(ctx, func(q store.RowQuerier) error {
				var ok bool
				if err := q.QueryRow(ctx, `select pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
					return perr.Wrap(err, perr.ErrorCodeDB, "sync: advisory lock")
				}
				if !ok {
					return ErrBusy
				}
				defer func() {
					// the pass context may be done; unlock regardless
					uctx := context.WithoutCancel(ctx)
					if _, err := q.Exec(uctx, `select pg_advisory_unlock($1)`, key); err != nil {
						logger.C(ctx).Error().Err(err).Int64("key", key).Msg("advisory unlock failed")
					}
				}()
				return do(ctx)
			})
		})
	}
}

// IsBusy reports a lock conflict
func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }
