package probe

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hamed0406/watchmen/internal/domain"
)

// DNSProber passes when the service host resolves to at least one address.
type DNSProber struct {
	Resolver Resolver
}

func NewDNSProber() *DNSProber {
	return &DNSProber{}
}

func (d *DNSProber) Check(ctx context.Context, svc domain.Service) Response {
	host := extractHost(svc.Target)
	dns := CheckDNS(ctx, d.Resolver, host)
	if dns.Class != ClassResolves {
		if dns.ResolverError != "" {
			return Response{Err: fmt.Errorf("dns %s: %s", dns.Class, dns.ResolverError), Body: string(dns.Class)}
		}
		return Response{Err: fmt.Errorf("dns %s", dns.Class), Body: string(dns.Class)}
	}
	return Response{Body: string(dns.Class)}
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
