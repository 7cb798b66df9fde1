package quiz

import (
	"strconv"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

// A cipher is sid*100 + offset(sid) + optionIndex: the student's public seat
// number in the high digits, their choice masked by a private additive
// offset in the low two. Obfuscation only, not cryptography.

// ParseCipher accepts decimal digits only; no sign, spaces, or other runes.
func ParseCipher(raw string) (int64, error) {
	if raw == "" {
		return 0, ErrMalformedCipher
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, ErrMalformedCipher
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Digits only, so the parse can only fail on overflow: numeric
		// input whose seat number is far outside the roster.
		return 0, roster.ErrSIDOutOfRange
	}
	return n, nil
}

func splitCipher(cipher int64) (sid int, suffix int) {
	return int(cipher / 100), int(cipher % 100)
}

// checkSuffix bounds the cipher's low two digits. 0 is invalid: it cannot
// encode a 1-indexed option plus a non-negative offset.
func checkSuffix(suffix int) error {
	if suffix < 1 || suffix > 99 {
		return ErrSuffixOutOfRange
	}
	return nil
}

// optionIndex unmasks the choice. The caller validates suffix first.
func optionIndex(suffix, offset, optionCount int) (int, error) {
	idx := suffix - offset
	if idx < 1 || idx > optionCount {
		return 0, ErrOptionIndexOutOfRange
	}
	return idx, nil
}

// checkSID mirrors roster bounds without a store lookup.
func checkSID(sid int) error {
	if sid < roster.MinSID || sid > roster.MaxSID {
		return roster.ErrSIDOutOfRange
	}
	return nil
}
