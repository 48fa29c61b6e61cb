package dns

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ichi-a/geo-shock/internal/fingerprint"
	"github.com/ichi-a/geo-shock/internal/metrics"
	"github.com/ichi-a/geo-shock/internal/netguard"
)

// Resolver is the subset of *net.Resolver the verifier needs.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Cache remembers definitive verification verdicts.
type Cache interface {
	Get(ctx context.Context, key string) (verified, ok bool)
	Set(ctx context.Context, key string, verified bool)
}

// Options tune the verifier. Zero values fall back to defaults.
type Options struct {
	Timeout time.Duration // per verification, both lookups included
	Rate    float64       // lookups per second across all identities; 0 disables the budget
	Burst   int
	Salt    string // used to key the cache without storing addresses
}

const (
	outcomeVerified        = "verified"
	outcomeCached          = "cached"
	outcomeNoPTR           = "no_ptr"
	outcomeHostMismatch    = "hostname_mismatch"
	outcomeForwardError    = "forward_error"
	outcomeForwardMismatch = "forward_mismatch"
	outcomeBlocked         = "private_address"
	outcomeBudget          = "budget_exhausted"
)

// Verifier confirms crawler identities with a reverse lookup, a hostname
// suffix check and a forward lookup that must return the original address.
// Every failure answers "unverified".
type Verifier struct {
	domains  map[string][]string
	resolver Resolver
	cache    Cache
	limiter  *rate.Limiter
	timeout  time.Duration
	salt     string
	logger   *slog.Logger
}

// NewVerifier builds a verifier for the identities in domains, each mapped to
// the hostname suffixes its operator publishes. resolver and cache may be nil.
func NewVerifier(domains map[string][]string, resolver Resolver, cache Cache, opts Options, logger *slog.Logger) *Verifier {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	v := &Verifier{
		domains:  make(map[string][]string, len(domains)),
		resolver: resolver,
		cache:    cache,
		timeout:  opts.Timeout,
		salt:     opts.Salt,
		logger:   logger,
	}
	for identity, suffixes := range domains {
		var norm []string
		for _, s := range suffixes {
			s = strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".")
			if s != "" {
				norm = append(norm, s)
			}
		}
		if len(norm) > 0 {
			v.domains[identity] = norm
		}
	}
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.Rate) + 1
		}
		v.limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}
	return v
}

// Supports reports whether identity has a verification strategy.
func (v *Verifier) Supports(identity string) bool {
	_, ok := v.domains[identity]
	return ok
}

// Verify runs the reverse/forward check for identity at addr.
func (v *Verifier) Verify(ctx context.Context, identity, addr string) bool {
	suffixes, ok := v.domains[identity]
	if !ok {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil || netguard.IsBlocked(ip) {
		metrics.Verifications.WithLabelValues(identity, outcomeBlocked).Inc()
		return false
	}

	key := identity + ":" + fingerprint.Hash(ip.String(), v.salt)
	if v.cache != nil {
		if verified, hit := v.cache.Get(ctx, key); hit {
			metrics.Verifications.WithLabelValues(identity, outcomeCached).Inc()
			return verified
		}
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			metrics.Verifications.WithLabelValues(identity, outcomeBudget).Inc()
			return false
		}
	}

	start := time.Now()
	outcome := v.check(ctx, ip, suffixes)
	metrics.VerificationSeconds.Observe(time.Since(start).Seconds())
	metrics.Verifications.WithLabelValues(identity, outcome).Inc()

	verified := outcome == outcomeVerified
	if v.cache != nil && definitive(outcome) {
		v.cache.Set(ctx, key, verified)
	}
	v.logger.Debug("dns: identity checked", "identity", identity, "outcome", outcome)
	return verified
}

func (v *Verifier) check(ctx context.Context, ip net.IP, suffixes []string) string {
	names, err := v.resolver.LookupAddr(ctx, ip.String())
	if err != nil || len(names) == 0 {
		return outcomeNoPTR
	}

	host := strings.TrimSuffix(strings.ToLower(names[0]), ".")
	if !hasSuffix(host, suffixes) {
		return outcomeHostMismatch
	}

	addrs, err := v.resolver.LookupHost(ctx, host)
	if err != nil {
		return outcomeForwardError
	}
	for _, a := range addrs {
		if ip.Equal(net.ParseIP(a)) {
			return outcomeVerified
		}
	}
	return outcomeForwardMismatch
}

func hasSuffix(host string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// definitive outcomes are worth caching; transient DNS errors are not.
func definitive(outcome string) bool {
	switch outcome {
	case outcomeVerified, outcomeHostMismatch, outcomeForwardMismatch:
		return true
	}
	return false
}
