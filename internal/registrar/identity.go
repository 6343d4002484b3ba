package registrar

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
)

// Validation and registration errors.
var (
	// ErrInvalidIdentity is returned when the identity or a declared attribute
	// fails validation. Retrying cannot fix it.
	ErrInvalidIdentity = errors.New("registrar: invalid identity")

	// ErrPortOccupied is returned when another driver is registered on the
	// same host and port.
	ErrPortOccupied = errors.New("registrar: host and port already registered")

	// ErrAttributeInUse is returned when a stale attribute definition cannot
	// be deleted because attribute values still reference it.
	ErrAttributeInUse = errors.New("registrar: attribute definition in use")
)

var (
	namePattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_#@/.|-]{1,31}$`)
	hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*$`)
)

const maxHostnameLen = 253

// Identity is how the driver presents itself to the authority.
type Identity struct {
	Name        string
	ServiceName string
	Host        string
	Port        int
	Description string
}

// IdentityFrom extracts the identity fields of a driver configuration.
func IdentityFrom(cfg config.DriverConfig) Identity {
	return Identity{
		Name:        cfg.Name,
		ServiceName: cfg.ServiceName,
		Host:        cfg.Host,
		Port:        cfg.Port,
		Description: cfg.Description,
	}
}

// Validate checks the identity. Host must already be resolved.
func (id Identity) Validate() error {
	if !namePattern.MatchString(id.Name) {
		return fmt.Errorf("%w: name %q", ErrInvalidIdentity, id.Name)
	}
	if !namePattern.MatchString(id.ServiceName) {
		return fmt.Errorf("%w: service name %q", ErrInvalidIdentity, id.ServiceName)
	}
	if !ValidHost(id.Host) {
		return fmt.Errorf("%w: host %q", ErrInvalidIdentity, id.Host)
	}
	if id.Port < config.DriverPortMin || id.Port > config.DriverPortMax {
		return fmt.Errorf("%w: port %d outside %d-%d",
			ErrInvalidIdentity, id.Port, config.DriverPortMin, config.DriverPortMax)
	}
	return nil
}

// ValidHost reports whether host is an IP literal or an RFC 1123 hostname.
func ValidHost(host string) bool {
	if host == "" {
		return false
	}
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return true
	}
	return len(host) <= maxHostnameLen && hostnamePattern.MatchString(host)
}

// LocalHost returns the first non-loopback IPv4 address of an interface
// that is up.
func LocalHost() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("listing interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4.String(), nil
			}
		}
	}
	return "", errors.New("no non-loopback IPv4 address found")
}
