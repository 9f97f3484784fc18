package modkit

import (
	"net/http"
	"testing"

	"inquirysync/internal/platform/config"
	phttp "inquirysync/internal/platform/net/http"
	"inquirysync/internal/platform/store"
)

func TestBuild(t *testing.T) {
	b := Build()
	if b.Name != "" || b.Prefix != "" || b.Ports != nil || b.Register == nil {
		t.Fatalf("zero build %+v", b)
	}
	b.Register(nil)

	mw := func(next http.Handler) http.Handler { return next }
	called := false
	b = Build(
		WithName("status"),
		WithPrefix("/sync"),
		WithMiddlewares(mw, mw),
		WithPorts(42),
		WithRegister(func(phttp.Router) { called = true }),
	)
	if b.Name != "status" || b.Prefix != "/sync" || len(b.Mw) != 2 || b.Ports != 42 {
		t.Fatalf("built %+v", b)
	}
	b.Register(nil)
	if !called {
		t.Fatal("register hook not kept")
	}
}

func TestFromStore(t *testing.T) {
	d := FromStore(config.New(), nil)
	if d.PG != nil || d.CH != nil {
		t.Fatalf("nil store produced %+v", d)
	}
	d = FromStore(config.New().Prefix("X_"), &store.Store{})
	if d.Cfg.Key("A") != "X_A" {
		t.Fatalf("cfg not kept: %q", d.Cfg.Key("A"))
	}
}
