package netguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPublic(t *testing.T) {
	tests := map[string]bool{
		"66.249.66.1":    true,
		"2001:4860::1":   true,
		"10.1.2.3":       false,
		"192.168.0.10":   false,
		"127.0.0.1":      false,
		"100.64.1.1":     false,
		"203.0.113.5":    false,
		"::1":            false,
		"fd00::1":        false,
		"unknown":        false,
		"":               false,
		"66.249.66.1:80": false,
	}
	for addr, want := range tests {
		assert.Equal(t, want, IsPublic(addr), addr)
	}
}
