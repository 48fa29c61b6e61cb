package geo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilLookupResolvesNothing(t *testing.T) {
	var l *ASNLookup
	assert.Equal(t, "", l.Lookup("66.249.66.1"))
	assert.NoError(t, l.Close())
}

func TestOpenASNMissingFile(t *testing.T) {
	_, err := OpenASN(filepath.Join(t.TempDir(), "GeoLite2-ASN.mmdb"))
	assert.Error(t, err)
}
