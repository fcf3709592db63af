package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

const digestPrefix = "sha256:"

// DigestHex returns the SHA-256 digest of data as lowercase hex.
func DigestHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestWithPrefix returns the SHA-256 digest with the "sha256:" prefix.
func DigestWithPrefix(data []byte) string {
	return digestPrefix + DigestHex(data)
}

// DigestText digests NFC-normalized text. Used for question digests so that
// logs and ledger rows can correlate requests without holding the text.
func DigestText(s string) string {
	return DigestWithPrefix([]byte(nfc(s)))
}

// ID canonicalizes v and returns its prefixed digest.
func ID(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return DigestWithPrefix(canonical), nil
}
