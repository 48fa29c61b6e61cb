package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	mdns "github.com/miekg/dns"
)

// UpstreamResolver talks to one configured nameserver directly instead of the
// system stub resolver.
type UpstreamResolver struct {
	client *mdns.Client
	server string
}

// NewUpstreamResolver targets server ("8.8.8.8" or "8.8.8.8:53").
func NewUpstreamResolver(server string, timeout time.Duration) *UpstreamResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &UpstreamResolver{
		client: &mdns.Client{Net: "udp", Timeout: timeout},
		server: server,
	}
}

// LookupAddr returns the PTR names for addr.
func (r *UpstreamResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	arpa, err := mdns.ReverseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("reverse addr: %w", err)
	}
	answer, err := r.query(ctx, arpa, mdns.TypePTR)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, rr := range answer {
		if ptr, ok := rr.(*mdns.PTR); ok {
			names = append(names, ptr.Ptr)
		}
	}
	return names, nil
}

// LookupHost returns the A and AAAA addresses of host.
func (r *UpstreamResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	var addrs []string
	var lastErr error
	for _, qtype := range []uint16{mdns.TypeA, mdns.TypeAAAA} {
		answer, err := r.query(ctx, mdns.Fqdn(host), qtype)
		if err != nil {
			lastErr = err
			continue
		}
		for _, rr := range answer {
			switch rec := rr.(type) {
			case *mdns.A:
				addrs = append(addrs, rec.A.String())
			case *mdns.AAAA:
				addrs = append(addrs, rec.AAAA.String())
			}
		}
	}
	if len(addrs) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return addrs, nil
}

var errNoAnswer = errors.New("no answer")

func (r *UpstreamResolver) query(ctx context.Context, name string, qtype uint16) ([]mdns.RR, error) {
	msg := new(mdns.Msg)
	msg.SetQuestion(name, qtype)
	msg.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("query %s %s: %w", name, mdns.TypeToString[qtype], err)
	}
	if in.Rcode != mdns.RcodeSuccess {
		return nil, fmt.Errorf("query %s %s: %s", name, mdns.TypeToString[qtype], mdns.RcodeToString[in.Rcode])
	}
	if len(in.Answer) == 0 {
		return nil, fmt.Errorf("query %s %s: %w", name, mdns.TypeToString[qtype], errNoAnswer)
	}
	return in.Answer, nil
}
