package web

import (
	"fmt"

	"github.com/grandcat/zeroconf"

	"github.com/cjeanneret/pimaton/internal/debug"
)

const (
	// ServiceType is the mDNS service type the panel is advertised as.
	ServiceType = "_http._tcp"
	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."
)

// Advertise publishes the panel on the local network so phones can find
// it as "<name>.local". The returned function withdraws the record.
func Advertise(name string, port int) (func(), error) {
	server, err := zeroconf.Register(name, ServiceType, ServiceDomain, port, []string{"path=/", "app=pimaton"}, nil)
	if err != nil {
		return nil, fmt.Errorf("mDNS register %q: %w", name, err)
	}
	debug.Verbose("Advertised %s %s on port %d", name, ServiceType, port)
	return server.Shutdown, nil
}
