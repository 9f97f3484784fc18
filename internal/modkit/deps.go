// Package modkit provides module wiring and core deps
package modkit

import (
	"inquirysync/internal/modkit/repokit"
	"inquirysync/internal/platform/config"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/platform/store"
)

// Deps holds core dependencies passed to modules; optional stores stay nil
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}

// FromStore builds Deps from an opened store
func FromStore(cfg config.Conf, st *store.Store) Deps {
	d := Deps{Cfg: cfg, Log: *logger.Get()}
	if st != nil {
		d.PG = st.PG
		d.CH = st.CH
		d.Log = st.Log
	}
	return d
}
