package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

type DNSClass string

const (
	ClassResolves    DNSClass = "RESOLVES"
	ClassNXDomain    DNSClass = "NXDOMAIN"
	ClassNoARecord   DNSClass = "NO_A_RECORD"
	ClassServFail    DNSClass = "SERVFAIL_or_TIMEOUT"
	ClassInvalidName DNSClass = "INVALID_NAME"
)

// Resolver is the subset of *net.Resolver used by CheckDNS.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

type DNSStatus struct {
	Domain        string
	IPs           []net.IP
	Nameservers   []string
	Class         DNSClass
	ResolverError string
}

var dnsTimeout = 3 * time.Second

// CheckDNS classifies how domain resolves. A nil resolver uses the OS resolver.
func CheckDNS(ctx context.Context, r Resolver, domain string) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(domain)}
	if s.Domain == "" || strings.Contains(s.Domain, "://") {
		s.Class = ClassInvalidName
		return s
	}
	if r == nil {
		r = net.DefaultResolver
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	ips, err := r.LookupIP(ctx, "ip", s.Domain)
	if err == nil && len(ips) > 0 {
		s.IPs = ips
		s.Class = ClassResolves
		return s
	}
	if err != nil {
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			switch {
			case de.IsNotFound:
				s.Class = ClassNXDomain
			case de.IsTemporary || de.Timeout():
				s.Class = ClassServFail
			}
		}
	}

	// The name exists but has no address records.
	if ns, err := r.LookupNS(ctx, s.Domain); err == nil && len(ns) > 0 {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == "" || s.Class == ClassNXDomain {
			s.Class = ClassNoARecord
		}
	}

	if s.Class == "" {
		if s.ResolverError != "" {
			s.Class = ClassServFail
		} else {
			s.Class = ClassNXDomain
		}
	}
	return s
}
