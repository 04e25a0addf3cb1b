package probe

import (
	"context"
	"net"
	"testing"
)

type fakeResolver struct {
	ips    []net.IP
	ipErr  error
	ns     []*net.NS
	nsErr  error
	lookup string
}

func (f *fakeResolver) LookupIP(ctx context.Context, network, host string) ([]net.IP, error) {
	f.lookup = host
	return f.ips, f.ipErr
}

func (f *fakeResolver) LookupNS(ctx context.Context, name string) ([]*net.NS, error) {
	return f.ns, f.nsErr
}

func TestDNSProber_Resolves(t *testing.T) {
	r := &fakeResolver{ips: []net.IP{net.ParseIP("127.0.0.1")}}
	p := &DNSProber{Resolver: r}
	out := p.Check(context.Background(), svcFor("https://example.com/health"))
	if out.Err != nil {
		t.Fatalf("want success, got %v", out.Err)
	}
	if r.lookup != "example.com" {
		t.Fatalf("want host example.com, got %q", r.lookup)
	}
}

func TestCheckDNS_Classes(t *testing.T) {
	cases := []struct {
		name string
		host string
		r    *fakeResolver
		want DNSClass
	}{
		{"invalid", "", &fakeResolver{}, ClassInvalidName},
		{"nxdomain", "nope.invalid", &fakeResolver{ipErr: &net.DNSError{Err: "no such host", IsNotFound: true}}, ClassNXDomain},
		{"no a record", "example.com", &fakeResolver{ipErr: &net.DNSError{Err: "no such host", IsNotFound: true}, ns: []*net.NS{{Host: "ns1.example.com."}}}, ClassNoARecord},
		{"servfail", "example.com", &fakeResolver{ipErr: &net.DNSError{Err: "timeout", IsTimeout: true, IsTemporary: true}}, ClassServFail},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CheckDNS(context.Background(), c.r, c.host)
			if got.Class != c.want {
				t.Fatalf("class=%s want %s", got.Class, c.want)
			}
		})
	}
}

func TestDNSProber_FailureCarriesClass(t *testing.T) {
	p := &DNSProber{Resolver: &fakeResolver{ipErr: &net.DNSError{Err: "no such host", IsNotFound: true}}}
	out := p.Check(context.Background(), svcFor("https://nope.invalid"))
	if out.Err == nil {
		t.Fatalf("want failure")
	}
	if out.Body != string(ClassNXDomain) {
		t.Fatalf("want body %s, got %q", ClassNXDomain, out.Body)
	}
}
