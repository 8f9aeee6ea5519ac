package sqlite

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
	"unicode"
)

// contentHash is the dedup key for Store.store, grounded on
// engram.core.dedup.content_hash: sha256 of the UTF-8 content, first 16 hex
// characters.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// sanitizeFTSQuery turns free text into an FTS5 MATCH expression, grounded
// on engram.core.search.sanitize_fts_query: strip everything but letters,
// digits and whitespace, keep the first maxWords tokens, OR-join them as
// quoted phrases so punctuation-heavy input can't break the MATCH grammar.
func sanitizeFTSQuery(raw string, maxWords int) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	words := strings.Fields(b.String())
	if len(words) == 0 {
		return "", false
	}
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + w + `"`
	}
	return strings.Join(quoted, " OR "), true
}

// firstWord returns the first whitespace-separated token of raw, for the
// LIKE-search fallback used when FTS5 itself errors out.
func firstWord(raw string) (string, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// encodeEmbedding packs a float32 vector as little-endian bytes. The
// original packs with the host's native byte order; this is pinned to
// little-endian regardless of host architecture so the on-disk format is
// portable.
func encodeEmbedding(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// decodeEmbedding is the inverse of encodeEmbedding. Returns nil for an
// empty or malformed blob.
func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec
}
