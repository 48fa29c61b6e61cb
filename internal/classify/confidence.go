package classify

// Confidence is the ordinal strength of the evidence behind a label.
type Confidence int

const (
	Unclassified       Confidence = iota // no signal
	IdentityMatch                        // user agent matched a known bot
	OriginCorroborated                   // network origin backs the claim
	Verified                             // DNS-verified, or a confirmed malicious probe
)

func (c Confidence) String() string {
	switch c {
	case Unclassified:
		return "unclassified"
	case IdentityMatch:
		return "identity_match"
	case OriginCorroborated:
		return "origin_corroborated"
	case Verified:
		return "verified"
	}
	return "invalid"
}

// Raise returns the stronger of c and to. It never lowers c.
func (c Confidence) Raise(to Confidence) Confidence {
	if to > c {
		return to
	}
	return c
}

// Valid reports whether c is one of the four defined levels.
func (c Confidence) Valid() bool {
	return c >= Unclassified && c <= Verified
}
