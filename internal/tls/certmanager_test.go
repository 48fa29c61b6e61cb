package tls

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowCertOnlyConfiguredDomains(t *testing.T) {
	cm := NewCertManager(Options{Domains: []string{"www.example.com", " Example.com ", "www.example.com"}},
		slog.New(slog.DiscardHandler))

	assert.Equal(t, []string{"www.example.com", "example.com"}, cm.names)
	assert.NoError(t, cm.allowCert(context.Background(), "example.com"))
	assert.NoError(t, cm.allowCert(context.Background(), "WWW.example.com"))
	assert.Error(t, cm.allowCert(context.Background(), "evil.example.net"))
}
