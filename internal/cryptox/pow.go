package cryptox

import (
	"context"
	"encoding/binary"
	"math/bits"

	"github.com/dmitrijs2005/gophgroups/internal/common"
)

// GenerateChallenge returns fresh proof-of-work challenge bytes.
func GenerateChallenge() []byte {
	return common.GenerateRandByteArray(common.ChallengeSize)
}

// LeadingZeroBits counts the leading zero bits of b.
func LeadingZeroBits(b []byte) int {
	n := 0
	for _, c := range b {
		if c != 0 {
			return n + bits.LeadingZeros8(c)
		}
		n += 8
	}
	return n
}

// CheckProofOfWork reports whether Hash(challenge || nonce) has at least
// difficulty leading zero bits. A difficulty of zero or less always holds.
func CheckProofOfWork(challenge, nonce []byte, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	return LeadingZeroBits(Hash(challenge, nonce)) >= difficulty
}

// SolveProofOfWork searches 8-byte big-endian counters starting at 1 until
// one satisfies CheckProofOfWork. It stops when ctx is done.
func SolveProofOfWork(ctx context.Context, challenge []byte, difficulty int) ([]byte, error) {
	nonce := make([]byte, common.MaxNonceSize)
	for i := uint64(1); ; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		binary.BigEndian.PutUint64(nonce, i)
		if CheckProofOfWork(challenge, nonce, difficulty) {
			return nonce, nil
		}
	}
}
