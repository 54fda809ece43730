package hashing

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"io"
	"sort"
	"strings"
)

// DigestLength is the number of characters kept from the encoded sha256 sum.
// Digests double as public cache-busting tokens, so the alphabet must stay
// filename-safe and short; 10 base32 characters carry 50 bits, which keeps
// the collision risk negligible for the corpus sizes involved. Changing this
// constant invalidates every previously recorded input hash.
const DigestLength = 10

// digestEncoding renders sums in a lowercase, filename-safe alphabet.
var digestEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// HashBytes returns the truncated digest of the supplied bytes. The result is
// deterministic across processes and platforms.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return encode(sum[:])
}

// HashReader streams the reader through sha256 so large files never need to
// be held in memory.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing: read content: %w", err)
	}
	return encode(h.Sum(nil)), nil
}

// HashInputSet canonicalizes the input set before hashing so equivalent sets
// presented in different orders produce identical digests. Keys are sorted
// and every key and value is length-prefixed, so no byte sequence inside a
// key or value can make two distinct sets serialize identically.
func HashInputSet(inputs map[string]string) string {
	if len(inputs) == 0 {
		return HashBytes(nil)
	}
	keys := make([]string, 0, len(inputs))
	for key := range inputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, key := range keys {
		value := inputs[key]
		fmt.Fprintf(&builder, "%d:%s%d:%s", len(key), key, len(value), value)
	}
	return HashBytes([]byte(builder.String()))
}

// EncodeSum renders a raw sha256 sum in the digest alphabet, truncated to
// DigestLength. Exposed for callers that compute sums while streaming.
func EncodeSum(sum []byte) string {
	return encode(sum)
}

func encode(sum []byte) string {
	encoded := digestEncoding.EncodeToString(sum)
	if len(encoded) > DigestLength {
		encoded = encoded[:DigestLength]
	}
	return encoded
}
