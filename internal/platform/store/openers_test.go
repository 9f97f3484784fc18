package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"inquirysync/internal/platform/store/pg"
	kit "inquirysync/internal/platform/testkit"
)

// pgxpool does not dial until the first acquire, so a closed port is fine here
const unreachableDSN = "postgres://u:p@127.0.0.1:1/inquirysync?sslmode=disable"

func TestOpenPGRetriesUntilPingSucceeds(t *testing.T) {
	kit.Serial(t)

	calls := 0
	kit.Swap(t, &pingPool, func(context.Context, *pg.PG) error {
		calls++
		if calls < 3 {
			return errors.New("the database system is starting up")
		}
		return nil
	})
	var slept []time.Duration
	kit.Swap(t, &sleep, func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	s := &Store{}
	r, err := openPG(context.Background(), Config{AppName: "inquirysync-test", PG: PGConfig{URL: unreachableDSN}}, s)
	if err != nil {
		t.Fatalf("openPG = %v", err)
	}
	defer r.(*pgAdapter).Close()

	if calls != 3 || len(slept) != 2 || slept[1] != 2*slept[0] {
		t.Fatalf("calls=%d slept=%v", calls, slept)
	}
	if got := r.(*pgAdapter).p.Pool.Config().ConnConfig.RuntimeParams["application_name"]; got != "inquirysync-test" {
		t.Fatalf("application_name = %q", got)
	}
}

func TestOpenPGGivesUp(t *testing.T) {
	kit.Serial(t)

	kit.Swap(t, &pingPool, func(context.Context, *pg.PG) error { return errors.New("refused") })
	kit.Swap(t, &sleep, func(context.Context, time.Duration) error { return nil })

	_, err := openPG(context.Background(), Config{PG: PGConfig{URL: unreachableDSN, ConnectRetries: 2}}, &Store{})
	if err == nil || err.Error() != "postgres ping failed after 2 attempts: refused" {
		t.Fatalf("openPG = %v", err)
	}
}

func TestOpenPGStopsOnCancel(t *testing.T) {
	kit.Serial(t)

	kit.Swap(t, &pingPool, func(context.Context, *pg.PG) error { return errors.New("refused") })
	kit.Swap(t, &sleep, func(context.Context, time.Duration) error { return context.Canceled })

	_, err := openPG(context.Background(), Config{PG: PGConfig{URL: unreachableDSN}}, &Store{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("openPG = %v", err)
	}
}

func TestOpenPGBadURL(t *testing.T) {
	if _, err := openPG(context.Background(), Config{PG: PGConfig{URL: "://bad"}}, &Store{}); err == nil {
		t.Fatalf("expected parse error")
	}
}
