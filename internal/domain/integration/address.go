package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// addressKeySeparator joins the normalized fields of a comparison key
const addressKeySeparator = "|"

// AddressFingerprint is the comparison key of an address together with its
// content hash. Two addresses are the same iff their keys are equal; the
// hash is only a compact lookup key.
type AddressFingerprint struct {
	Key  string
	Hash string
}

// Fingerprint computes the comparison key and content hash of an address
func Fingerprint(addr RecipientAddress) AddressFingerprint {
	key := AddressKey(addr)
	return AddressFingerprint{Key: key, Hash: AddressHash(key)}
}

// AddressKey builds the comparison key of an address. Name and phone are
// excluded so that contact changes never count as an address change.
func AddressKey(addr RecipientAddress) string {
	return strings.Join([]string{
		NormalizeZipcode(addr.Zipcode),
		NormalizeText(addr.State),
		NormalizeText(addr.City),
		NormalizeText(addr.District),
		NormalizeText(addr.Town),
		NormalizeText(addr.Region),
		NormalizeText(addr.FullAddress),
	}, addressKeySeparator)
}

// AddressHash returns the hex encoded SHA-256 of a comparison key
func AddressHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// NormalizeText lower-cases s, strips diacritics and collapses every run of
// characters that are neither letters nor digits into a single space.
//
//	NormalizeText("  São Paulo - SP ") == "sao paulo sp"
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	// Transformers keep internal state, so a fresh chain is built per call.
	stripped, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))),
		s,
	)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	pendingSpace := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// NormalizeZipcode keeps only the digits of a postal code
func NormalizeZipcode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Masked value detection
// ---------------------------------------------------------------------------

// MaskPredicate reports whether a value was redacted by the marketplace
type MaskPredicate interface {
	IsMasked(value string) bool
}

// MaskPredicateFunc adapts a function to MaskPredicate
type MaskPredicateFunc func(value string) bool

// IsMasked implements MaskPredicate
func (f MaskPredicateFunc) IsMasked(value string) bool {
	return f(value)
}

// DefaultMaskMarkers are the redaction markers the marketplace currently uses
var DefaultMaskMarkers = []string{"*", "xxx", "masked"}

// SubstringMaskPredicate treats a value as masked when it contains any of
// the configured markers, compared case-insensitively.
type SubstringMaskPredicate struct {
	markers []string
}

// NewSubstringMaskPredicate creates a predicate from markers. Empty markers
// are ignored; with no markers nothing is considered masked.
func NewSubstringMaskPredicate(markers ...string) *SubstringMaskPredicate {
	normalized := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			normalized = append(normalized, m)
		}
	}
	return &SubstringMaskPredicate{markers: normalized}
}

// DefaultMaskPredicate returns a predicate using DefaultMaskMarkers
func DefaultMaskPredicate() *SubstringMaskPredicate {
	return NewSubstringMaskPredicate(DefaultMaskMarkers...)
}

// IsMasked implements MaskPredicate. Blank values are absent, not masked.
func (p *SubstringMaskPredicate) IsMasked(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	for _, m := range p.markers {
		if strings.Contains(v, m) {
			return true
		}
	}
	return false
}

// Markers returns the configured markers
func (p *SubstringMaskPredicate) Markers() []string {
	out := make([]string, len(p.markers))
	copy(out, p.markers)
	return out
}
