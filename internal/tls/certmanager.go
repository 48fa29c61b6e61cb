package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/caddyserver/certmagic"
)

// Options select the ACME account and the names to certify.
type Options struct {
	Domains []string
	Email   string
	Staging bool
}

// CertManager obtains and renews certificates for the configured domains.
type CertManager struct {
	domains map[string]struct{}
	names   []string
	logger  *slog.Logger
	cfg     *certmagic.Config
}

// NewCertManager configures certmagic for opts. On-demand issuance is limited
// to the configured names.
func NewCertManager(opts Options, logger *slog.Logger) *CertManager {
	certmagic.DefaultACME.Email = opts.Email
	certmagic.DefaultACME.Agreed = true
	if opts.Staging {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}

	cm := &CertManager{domains: make(map[string]struct{}), logger: logger}
	for _, d := range opts.Domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, dup := cm.domains[d]; !dup {
			cm.names = append(cm.names, d)
		}
		cm.domains[d] = struct{}{}
	}

	cm.cfg = certmagic.NewDefault()
	cm.cfg.OnDemand = &certmagic.OnDemandConfig{DecisionFunc: cm.allowCert}
	return cm
}

func (cm *CertManager) allowCert(_ context.Context, name string) error {
	if _, ok := cm.domains[strings.ToLower(name)]; !ok {
		return fmt.Errorf("unknown domain: %s", name)
	}
	return nil
}

// ServeTLS manages the configured names, then serves srv over TLS on :443
// until srv is shut down.
func (cm *CertManager) ServeTLS(ctx context.Context, srv *http.Server) error {
	cm.logger.Info("tls: managing certificates", "domains", cm.names)
	if len(cm.names) > 0 {
		if err := cm.cfg.ManageSync(ctx, cm.names); err != nil {
			return fmt.Errorf("manage domains: %w", err)
		}
	}

	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", certmagic.HTTPSPort), cm.cfg.TLSConfig())
	if err != nil {
		return fmt.Errorf("tls listen: %w", err)
	}

	cm.logger.Info("tls: serving HTTPS", "port", certmagic.HTTPSPort)
	return srv.Serve(ln)
}
