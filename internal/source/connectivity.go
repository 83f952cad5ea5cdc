package source

import (
	"context"
	"net"
)

// Connectivity reports whether a network path exists right now.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }

// AlwaysOnline skips the connectivity check.
var AlwaysOnline Connectivity = ConnectivityFunc(func(context.Context) bool { return true })

// InterfaceProbe considers the host online when at least one interface is up,
// is not a loopback, and carries an address.
type InterfaceProbe struct {
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

func NewInterfaceProbe() *InterfaceProbe {
	return &InterfaceProbe{
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

func (p *InterfaceProbe) Online(ctx context.Context) bool {
	ifaces, err := p.interfaces()
	if err != nil {
		// can't tell; let the request decide
		return true
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := p.addrs(iface)
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
