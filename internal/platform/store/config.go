package store

import (
	"time"

	"inquirysync/internal/platform/config"
)

// Config aggregates backend configuration
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures the Postgres pool
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	LogArgs     bool // sheet rows carry phone numbers, keep off outside dev
	SlowQueryMs int

	ConnectRetries int           // ping attempts before giving up, default 20
	PingTimeout    time.Duration // per attempt, default 3s
}

// CHConfig configures the ClickHouse mirror
type CHConfig struct {
	Enabled    bool
	DSN        string
	ClientRole string // reported in system.query_log client info
	ClientTag  string
}

// ConfigFrom reads [SERVICE_PGSQL_] and [SERVICE_CH_]; tag names the binary in client info
func ConfigFrom(cfg config.Conf, tag string) Config {
	pg := cfg.Prefix("SERVICE_PGSQL_")
	ch := cfg.Prefix("SERVICE_CH_")
	c := Config{
		AppName: "inquirysync-" + tag,
		PG: PGConfig{
			Enabled:     true,
			URL:         pg.MustString("DBURL"),
			MaxConns:    int32(pg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pg.MayInt("SLOW_MS", 500),
			LogSQL:      pg.MayBool("LOG_SQL", false),
			LogArgs:     pg.MayBool("LOG_ARGS", false),
		},
		CH: CHConfig{
			Enabled:    ch.MayBool("ENABLED", false),
			ClientRole: "inquirysync",
			ClientTag:  tag,
		},
	}
	if c.CH.Enabled {
		c.CH.DSN = ch.MustString("DSN")
	}
	return c
}
