// Command inquirysync-api serves the sync log, the category table and manual
// pass triggers over http.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"inquirysync/internal/core/category"
	"inquirysync/internal/core/version"
	"inquirysync/internal/modkit"
	"inquirysync/internal/modkit/httpkit"
	"inquirysync/internal/modkit/module"
	"inquirysync/internal/modkit/repokit"
	"inquirysync/internal/platform/config"
	"inquirysync/internal/platform/logger"
	phttp "inquirysync/internal/platform/net/http"
	"inquirysync/internal/platform/store"
	statusmod "inquirysync/internal/services/status/module"
	syncdomain "inquirysync/internal/services/sync/domain"
	syncmod "inquirysync/internal/services/sync/module"
)

func main() {
	root := config.New()
	l := logger.Named("api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.ConfigFrom(root, "api"), store.WithLogger(*logger.Get()))
	if err != nil {
		l.Panic().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	repokit.MustGuard(ctx, st)

	deps := modkit.FromStore(root, st)

	// the runs endpoint needs the sheet source and notifiers; without them the
	// API serves logs and categories and answers runs with 503
	var ports statusmod.Ports
	if root.Prefix("API_").MayBool("RUNS_ENABLED", true) {
		sm, err := syncmod.New(ctx, deps)
		if err != nil {
			l.Panic().Err(err).Msg("failed to build sync module")
		}
		module.Register(sm.Name(), sm.Ports())
		ports = statusmod.Ports{
			Runner: module.MustPortsOf[syncdomain.RunnerPort](sm),
			Table:  module.MustPortsOf[*category.Table](sm),
		}
	}

	status := statusmod.New(deps, modkit.WithPorts(ports))
	module.Register(status.Name(), status.Ports())

	srv := phttp.NewServer(phttp.ServerOptionsFrom(root))
	r := srv.Router()
	r.Use(httpkit.CommonStack(httpkit.StackOptionsFrom(root))...)
	status.MountHealth(r)
	httpkit.MountAPIV1(r, nil, func(api httpkit.Router) {
		status.MountRoutes(api)
	})

	l.Info().Str("addr", srv.Addr()).Str("version", version.Info().Version).Msg("api listening")
	if err := srv.Run(ctx); err != nil {
		l.Error().Err(err).Msg("server stopped")
		return
	}
	l.Info().Msg("api stopped")
}
