package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// syntheticAddress derives an address-shaped token from a fresh random seed
// and the creation time. It lands in 10.0.0.0/8 with no zero or broadcast
// octets. Tokens are not network addresses, and knowing one says nothing
// about any other session's token.
func syntheticAddress(now time.Time) string {
	var seed [8]byte
	_, _ = rand.Read(seed[:]) // never fails since Go 1.24

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.UnixNano())) // #nosec G115 - only hashed

	h := sha256.New()
	h.Write(seed[:])
	h.Write(ts[:])
	sum := h.Sum(nil)

	return fmt.Sprintf("10.%d.%d.%d", sum[0]%254+1, sum[1]%254+1, sum[2]%254+1)
}
