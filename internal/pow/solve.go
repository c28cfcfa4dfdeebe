package pow

import (
	"context"
	"math"
)

// checkEvery bounds how often Solve polls ctx during the search.
const checkEvery = 4096

// Solve searches nonces from 0 upwards until hex(SHA256(token:nonce)) has difficulty
// leading zeros. Browsers run the same loop in a worker; this copy serves tests and tooling.
func Solve(ctx context.Context, token string, difficulty int) (int64, error) {
	for nonce := int64(0); nonce < math.MaxInt64; nonce++ {
		if nonce%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		if meetsDifficulty(digestHex(token, nonce), difficulty) {
			return nonce, nil
		}
	}

	return 0, ErrInvalidProofOfWork
}
