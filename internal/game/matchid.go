package game

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// NewMatchID derives an unguessable 0x-prefixed Keccak-256 id from both
// addresses, the stake, a timestamp and a random nonce.
func NewMatchID(addrA, addrB, stakeKey string, at time.Time) string {
	seed := fmt.Sprintf("%s|%s|%s|%d|%s",
		strings.ToLower(addrA), strings.ToLower(addrB), stakeKey, at.UnixMilli(), uuid.NewString())

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(seed))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
