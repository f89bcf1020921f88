package capture

import (
	"crypto/sha256"
	"encoding/hex"
)

// truncateRunes cuts in to at most maxRunes runes without splitting a
// UTF-8 sequence. It reports whether a cut happened, the original rune
// count, and a digest of the full input for log correlation.
func truncateRunes(in string, maxRunes int) (string, bool, int, string) {
	runes := []rune(in)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return in, false, len(runes), ""
	}
	sum := sha256.Sum256([]byte(in))
	return string(runes[:maxRunes]), true, len(runes), hex.EncodeToString(sum[:])
}
