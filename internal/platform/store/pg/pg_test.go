package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestOpenAppliesConfigAndMutator(t *testing.T) {
	var seen *pgxpool.Config
	orig := newPool
	newPool = func(_ context.Context, c *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = c
		return nil, nil
	}
	t.Cleanup(func() { newPool = orig })

	p, err := Open(context.Background(), Config{
		URL:      "postgres://u:p@localhost:5432/inquirysync",
		MaxConns: 7,
		SlowMs:   250,
	}, nil, func(c *pgxpool.Config) {
		c.ConnConfig.RuntimeParams["application_name"] = "inquirysync-sync"
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen.MaxConns != 7 || seen.ConnConfig.RuntimeParams["application_name"] != "inquirysync-sync" {
		t.Fatalf("config not applied: max=%d params=%v", seen.MaxConns, seen.ConnConfig.RuntimeParams)
	}
	if p.SlowMs != 250 {
		t.Fatalf("SlowMs = %d", p.SlowMs)
	}
	p.Close()
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(context.Background(), Config{URL: "not a url"}, nil, nil); err == nil {
		t.Fatal("expected parse error")
	}

	orig := newPool
	boom := errors.New("boom")
	newPool = func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) { return nil, boom }
	t.Cleanup(func() { newPool = orig })

	if _, err := Open(context.Background(), Config{URL: "postgres://localhost/db"}, nil, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestCloseNil(t *testing.T) {
	var p *PG
	p.Close()
	(&PG{}).Close()
}
