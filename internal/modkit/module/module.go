// Package module defines the minimal contract for a modkit module
package module

import (
	phttp "inquirysync/internal/platform/net/http"
)

// Module defines the minimal contract used by modkit.
// It lives apart from modkit so a module can export its own ports type without an import knot.
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
