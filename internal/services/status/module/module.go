// Package module wires the status API into the http server using modkit
package module

import (
	"net/http"

	"inquirysync/internal/core/category"
	"inquirysync/internal/modkit"
	"inquirysync/internal/modkit/httpkit"
	"inquirysync/internal/platform/store"
	statushttp "inquirysync/internal/services/status/http"
	statusrepo "inquirysync/internal/services/status/repo"
	statussvc "inquirysync/internal/services/status/service"
	syncdomain "inquirysync/internal/services/sync/domain"
)

// Ports are the cross module dependencies of the status API, usually taken from the sync module
type Ports struct {
	Runner syncdomain.RunnerPort
	Table  *category.Table
}

// Module implements the status module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)

	svc *statussvc.Svc
}

// New constructs the status module; inject the sync runner with modkit.WithPorts(Ports{...})
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("status"), modkit.WithPrefix("/sync")}, opts...)...)

	p, _ := b.Ports.(Ports)
	svc := statussvc.New(deps.PG, statusrepo.NewPG(), p.Runner, p.Table)
	if pinger, ok := deps.CH.(store.Pinger); ok {
		svc.CH = pinger
	}

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
	}
	external := b.Register
	m.register = func(r httpkit.Router) {
		statushttp.Register(r, m.svc)
		external(r)
	}
	return m
}

// MountRoutes mounts the module routes under its prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		if len(m.mws) > 0 {
			rr.Use(m.mws...)
		}
		m.register(rr)
	})
}

// MountHealth mounts /healthz at the root of r
func (m *Module) MountHealth(r httpkit.Router) { statushttp.RegisterHealth(r, m.svc) }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }

// Ports exposes the status service
func (m *Module) Ports() any { return statussvc.Service(m.svc) }
