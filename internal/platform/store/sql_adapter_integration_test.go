//go:build integration_pg

package store

import (
	"context"
	"errors"
	"testing"

	kit "inquirysync/internal/platform/testkit"
)

func TestPGAdapterIntegration(t *testing.T) {
	dsn := kit.StartPostgres(t)
	ctx := context.Background()

	s, err := Open(ctx, Config{AppName: "inquirysync-it", PG: PGConfig{Enabled: true, URL: dsn}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close(ctx) })

	if err := s.Guard(ctx); err != nil {
		t.Fatalf("Guard = %v", err)
	}

	if _, err := s.PG.Exec(ctx, `CREATE TABLE contacts (name text, phone text)`); err != nil {
		t.Fatal(err)
	}

	t.Run("tx rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.PG.Tx(ctx, func(q RowQuerier) error {
			if _, err := q.Exec(ctx, `INSERT INTO contacts VALUES ($1, $2)`, "홍길동", "01012345678"); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Tx = %v", err)
		}
		n, err := Scalar[int64](ctx, s.PG, `SELECT count(*) FROM contacts`)
		if err != nil || n != 0 {
			t.Fatalf("count = %d, %v", n, err)
		}
	})

	t.Run("session holds advisory lock", func(t *testing.T) {
		err := s.PG.Session(ctx, func(q RowQuerier) error {
			var got bool
			if err := q.QueryRow(ctx, `SELECT pg_try_advisory_lock(42)`).Scan(&got); err != nil || !got {
				t.Fatalf("lock = %v, %v", got, err)
			}
			// another session must not see it free
			other, err := Scalar[bool](ctx, s.PG, `SELECT pg_try_advisory_lock(42)`)
			if err != nil || other {
				t.Fatalf("second lock = %v, %v", other, err)
			}
			_, err = q.Exec(ctx, `SELECT pg_advisory_unlock(42)`)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("application name is set", func(t *testing.T) {
		name, err := Scalar[string](ctx, s.PG, `SELECT current_setting('application_name')`)
		if err != nil || name != "inquirysync-it" {
			t.Fatalf("application_name = %q, %v", name, err)
		}
	})
}
