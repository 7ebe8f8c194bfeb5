package slot

import (
	"crypto/rand"
	"fmt"
	"strings"
	"unicode"
)

const (
	tokenLength   = 32
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// largest multiple of len(tokenAlphabet) that fits in a byte
	tokenByteLimit = 256 - 256%len(tokenAlphabet)
)

// NewToken returns a random alphanumeric token (about 190 bits of entropy).
func NewToken() (string, error) {
	var sb strings.Builder
	sb.Grow(tokenLength)
	buf := make([]byte, tokenLength*2)
	for sb.Len() < tokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= tokenByteLimit {
				continue
			}
			sb.WriteByte(tokenAlphabet[int(b)%len(tokenAlphabet)])
			if sb.Len() == tokenLength {
				break
			}
		}
	}
	return sb.String(), nil
}

// ValidToken reports whether s has the shape of a token. Anything else can
// be rejected without touching the store.
func ValidToken(s string) bool {
	if len(s) != tokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// SanitizeName reduces a client supplied file name to its last path
// component without control characters or leading dots.
func SanitizeName(raw string) (string, error) {
	name := raw
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar || unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), "."))
	if name == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, raw)
	}
	return name, nil
}
