// Package http provides http transport for the status API
package http

import (
	stdhttp "net/http"

	"inquirysync/internal/modkit/httpkit"
	"inquirysync/internal/services/status/domain"
	svc "inquirysync/internal/services/status/service"
)

// Register mounts the sync endpoints on the module router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	// recent sync_log rows
	httpkit.Get(r, "/logs", h.logs)

	// effective category table
	httpkit.Get(r, "/categories", h.categories)

	// one synchronous pass; an empty body runs every enabled category
	httpkit.PostJSON(r, "/runs", h.run, httpkit.JSONOptions{
		MaxBytes:        4 << 10,
		DisallowUnknown: true,
		AllowEmptyBody:  true,
	})
}

// RegisterHealth mounts the unversioned health check
func RegisterHealth(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	r.Get("/healthz", httpkit.Handle(h.health))
}

type handlers struct{ svc svc.Service }

func (h *handlers) health(r *stdhttp.Request) httpkit.Response {
	out, err := h.svc.Health(r.Context())
	if err != nil {
		return httpkit.Response{Status: stdhttp.StatusServiceUnavailable, Body: out}
	}
	return httpkit.OK(out)
}

func (h *handlers) logs(r *stdhttp.Request) (any, error) {
	limit, err := httpkit.QueryInt(r, "limit", domain.DefaultLimit)
	if err != nil {
		return nil, err
	}
	return h.svc.Logs(r.Context(), domain.LogQuery{
		Limit:    limit,
		Category: httpkit.QueryString(r, "category"),
		Status:   httpkit.QueryString(r, "status"),
	})
}

func (h *handlers) categories(*stdhttp.Request) (any, error) {
	return h.svc.Categories(), nil
}

func (h *handlers) run(r *stdhttp.Request, in domain.RunRequest) (any, error) {
	return h.svc.Run(r.Context(), in)
}
