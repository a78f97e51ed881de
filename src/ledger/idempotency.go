package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/OneOfOne/xxhash"
)

// IdempotencyKey derives a stable 128-bit key from parts, so a write resent
// after a partial failure carries the same key and the gateway can drop it.
func IdempotencyKey(parts ...string) string {
	data := []byte(strings.Join(parts, "\x1f"))
	return hex.EncodeToString(twox128(data))
}

func twox128(data []byte) []byte {
	hash1 := xxhash.NewS64(0)
	hash1.Write(data)
	hash2 := xxhash.NewS64(1)
	hash2.Write(data)
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:], hash1.Sum64())
	binary.LittleEndian.PutUint64(out[8:], hash2.Sum64())
	return out
}
