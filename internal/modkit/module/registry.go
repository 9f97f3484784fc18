package module

import "sync"

// registry holds port bundles by module name so main can cross wire modules
type registry struct {
	mu    sync.RWMutex
	ports map[string]any
}

var global = &registry{ports: map[string]any{}}

// Register stores the port bundle of a module, replacing any earlier one
func Register(name string, ports any) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.ports[name] = ports
}

// PortsAs returns the bundle registered under name if it is a T
func PortsAs[T any](name string) (T, bool) {
	global.mu.RLock()
	v, found := global.ports[name]
	global.mu.RUnlock()

	out, ok := v.(T)
	return out, found && ok
}

// Reset empties the registry
func Reset() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.ports = map[string]any{}
}
