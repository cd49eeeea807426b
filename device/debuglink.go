//go:build debuglink

package device

import "github.com/jmcleod/firmgate/wire"

// debugBypass exempts the debug transport from the locked allow-list.
// Factory and test tooling only; without the debuglink tag the stub in
// debuglink_off.go is compiled instead.
func debugBypass(iface wire.Interface) bool {
	return iface == wire.IfaceDebug
}
