package auth

import (
	"encoding/base32"
	"strings"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var rawBase32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Base32Encode encodes bytes with the RFC 4648 alphabet and no padding
func Base32Encode(b []byte) string {
	return rawBase32.EncodeToString(b)
}

// Base32Decode is lenient: input is upper-cased, characters outside the
// alphabet (including '=' and whitespace) are ignored, and trailing bits that
// do not fill a whole byte are discarded.
func Base32Decode(s string) []byte {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if strings.ContainsRune(base32Alphabet, r) {
			sb.WriteRune(r)
		}
	}
	clean := sb.String()

	// a group of n chars carries 5n bits; remainders 1, 3 and 6 carry no
	// additional whole byte beyond the char before them
	switch len(clean) % 8 {
	case 1, 3, 6:
		clean = clean[:len(clean)-1]
	}

	out, err := rawBase32.DecodeString(clean)
	if err != nil {
		return []byte{}
	}
	return out
}
