package classify

import (
	"time"

	"github.com/google/uuid"
)

// Request is what the tracker knows about one inbound HTTP request.
type Request struct {
	Addr       string
	UserAgent  string
	Path       string
	OriginID   string
	TrapHit    bool
	Headers    map[string]string
	ReceivedAt time.Time
}

// Record is the persisted outcome of classifying one request. It never holds
// the client address, only its fingerprint.
type Record struct {
	ID          uuid.UUID         `json:"id"`
	Timestamp   time.Time         `json:"created_at"`
	Fingerprint string            `json:"ip_hash"`
	UserAgent   string            `json:"ua,omitempty"`
	Path        string            `json:"path"`
	OriginID    string            `json:"asn,omitempty"`
	Label       string            `json:"bot_type,omitempty"`
	Confidence  Confidence        `json:"verification_level"`
	TrapHit     bool              `json:"is_honeypot"`
	Malicious   bool              `json:"is_malicious"`
	Headers     map[string]string `json:"headers_json,omitempty"`
}

// Classified reports whether the record carries a bot or category label.
func (r Record) Classified() bool {
	return r.Label != ""
}
