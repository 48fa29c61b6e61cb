// Package geo resolves client addresses to autonomous-system numbers from a
// MaxMind ASN database, for deployments where the edge does not forward one.
package geo

import (
	"fmt"
	"net"
	"strconv"

	"github.com/oschwald/geoip2-golang"
)

// ASNLookup wraps a GeoLite2-ASN / GeoIP2-ISP reader. A nil *ASNLookup is
// valid and resolves nothing.
type ASNLookup struct {
	db *geoip2.Reader
}

// OpenASN opens the database at path.
func OpenASN(path string) (*ASNLookup, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open asn db: %w", err)
	}
	return &ASNLookup{db: db}, nil
}

// Lookup returns the ASN for addr as a decimal string, or "".
func (l *ASNLookup) Lookup(addr string) string {
	if l == nil || l.db == nil {
		return ""
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return ""
	}
	rec, err := l.db.ASN(ip)
	if err != nil || rec.AutonomousSystemNumber == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(rec.AutonomousSystemNumber), 10)
}

// Close releases the database.
func (l *ASNLookup) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
