// Package config implements the TOML-backed ServiceConfig every agent
// loads once at startup: its own identity and bind address, the peers it
// may accept connections from (clients) or dial out to (servers), and the
// encryption scheme used to derive this service's own key material.
package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/openportal-go/openportal/errs"
)

// IpOrRange matches a client connection's source address against either a
// single IP or a CIDR range (spec.md §5: "a client entry permits inbound
// connections from a named peer at a stated IP or CIDR").
type IpOrRange struct {
	ip   net.IP
	cidr *net.IPNet
	text string
}

// ParseIpOrRange parses s as a bare IP address or a CIDR range.
func ParseIpOrRange(s string) (IpOrRange, error) {
	s = strings.TrimSpace(s)

	if ip := net.ParseIP(s); ip != nil {
		return IpOrRange{ip: ip, text: s}, nil
	}

	if _, ipnet, err := net.ParseCIDR(s); err == nil {
		return IpOrRange{cidr: ipnet, text: s}, nil
	}

	return IpOrRange{}, fmt.Errorf("%w: could not parse IP address or range: %s", errs.ErrParse, s)
}

// String renders the original text the value was parsed from.
func (r IpOrRange) String() string {
	return r.text
}

// Matches reports whether addr falls within this IP or CIDR range.
func (r IpOrRange) Matches(addr net.IP) bool {
	if r.ip != nil {
		return r.ip.Equal(addr)
	}
	if r.cidr != nil {
		return r.cidr.Contains(addr)
	}
	return false
}

// MarshalText renders via String, for TOML serialisation.
func (r IpOrRange) MarshalText() ([]byte, error) {
	return []byte(r.text), nil
}

// UnmarshalText parses via ParseIpOrRange.
func (r *IpOrRange) UnmarshalText(text []byte) error {
	parsed, err := ParseIpOrRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
