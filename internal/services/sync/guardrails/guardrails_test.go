package guardrails

import (
	"context"
	"errors"
	"testing"
	"time"

	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/store"
)

func TestChildTimeouts(t *testing.T) {
	ctx, cancel := ForDB(context.Background(), Timeouts{DB: time.Minute})
	defer cancel()
	if r := Remaining(ctx); r <= 0 || r > time.Minute {
		t.Fatalf("remaining %v", r)
	}

	parent, pc := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer pc()
	child, cc := ForFetch(parent, Timeouts{Fetch: time.Hour})
	defer cc()
	if r := Remaining(child); r > 50*time.Millisecond {
		t.Fatalf("child extended the parent deadline: %v", r)
	}

	free, fc := ForNotify(context.Background(), Timeouts{})
	defer fc()
	if _, ok := free.Deadline(); ok {
		t.Fatal("zero timeout set a deadline")
	}
	if Remaining(context.Background()) != 0 {
		t.Fatal("remaining without deadline")
	}
}

func TestLocalLock(t *testing.T) {
	lock := LocalLock()
	var inner error
	err := lock(context.Background(), func(ctx context.Context) error {
		inner = lock(ctx, func(context.Context) error { return nil })
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !IsBusy(inner) || !perr.IsCode(inner, perr.ErrorCodeConflict) {
		t.Fatalf("inner %v", inner)
	}
	// released
	if err := lock(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
}

type boolRow struct {
	v   bool
	err error
}

func (r boolRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*bool)) = r.v
	return nil
}

type lockDB struct {
	granted bool
	scanErr error
	execs   []string
	session int
}

func (d *lockDB) Exec(_ context.Context, sql string, _ ...any) (store.CommandTag, error) {
	d.execs = append(d.execs, sql)
	return nil, nil
}
func (d *lockDB) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (d *lockDB) QueryRow(context.Context, string, ...any) store.Row {
	return boolRow{v: d.granted, err: d.scanErr}
}
func (d *lockDB) Tx(_ context.Context, fn func(store.RowQuerier) error) error { return fn(d) }
func (d *lockDB) Session(_ context.Context, fn func(store.RowQuerier) error) error {
	d.session++
	return fn(d)
}

func TestAdvisoryLock(t *testing.T) {
	t.Run("granted runs and unlocks", func(t *testing.T) {
		db := &lockDB{granted: true}
		ran := false
		err := AdvisoryLock(db, 7)(context.Background(), func(context.Context) error {
			ran = true
			return errors.New("pass error")
		})
		if err == nil || err.Error() != "pass error" || !ran {
			t.Fatalf("err=%v ran=%v", err, ran)
		}
		if len(db.execs) != 1 || db.session != 1 {
			t.Fatalf("execs %v session %d", db.execs, db.session)
		}
	})

	t.Run("held elsewhere", func(t *testing.T) {
		db := &lockDB{}
		err := AdvisoryLock(db, 7)(context.Background(), func(context.Context) error {
			t.Fatal("ran without the lock")
			return nil
		})
		if !IsBusy(err) || len(db.execs) != 0 {
			t.Fatalf("err=%v execs=%v", err, db.execs)
		}
	})

	t.Run("lock query fails", func(t *testing.T) {
		db := &lockDB{scanErr: errors.New("conn closed")}
		err := AdvisoryLock(db, 7)(context.Background(), func(context.Context) error { return nil })
		if !perr.IsCode(err, perr.ErrorCodeDB) {
			t.Fatalf("err=%v", err)
		}
	})
}
