package pow

import (
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Token is a decoded challenge token.
type Token struct {
	Raw       string
	Seed      string
	URLHash   string
	Expiry    int64
	Signature string

	expiryRaw string
}

// ExpiresAt returns the token expiry as a time.
func (t *Token) ExpiresAt() time.Time {
	return time.Unix(t.Expiry, 0)
}

// ClaimKey identifies the token for single-use tracking. Signature hex is matched
// case-insensitively, so the key is its lowercase form.
func (t *Token) ClaimKey() string {
	return strings.ToLower(t.Signature)
}

// DecodeToken parses the base64 wire form. It does not check the signature.
func DecodeToken(raw string) (*Token, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrMalformedToken
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return nil, ErrMalformedToken
	}

	expiry, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}

	return &Token{
		Raw:       raw,
		Seed:      parts[0],
		URLHash:   parts[1],
		Expiry:    expiry,
		Signature: parts[3],
		expiryRaw: parts[2],
	}, nil
}

// Verifier checks client solutions. It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	cfg Config
	now Clock
}

// NewVerifier creates a new proof-of-work verifier.
func NewVerifier(cfg Config, now Clock) *Verifier {
	if now == nil {
		now = time.Now
	}

	return &Verifier{cfg: cfg, now: now}
}

// Difficulty returns the configured number of leading zero hex digits.
func (v *Verifier) Difficulty() int {
	return v.cfg.Difficulty
}

// Verify validates token and nonce for canonicalURL. The checks run in a fixed order
// and the first failure is returned: malformed token, url mismatch, expiry, signature,
// proof-of-work.
func (v *Verifier) Verify(canonicalURL, rawToken string, nonce int64) (*Token, error) {
	token, err := DecodeToken(rawToken)
	if err != nil {
		return nil, err
	}

	expected := strconv.FormatUint(CanonicalHash(canonicalURL), 10)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token.URLHash)) != 1 {
		return nil, ErrURLMismatch
	}

	if token.Expiry < v.now().Unix() {
		return nil, ErrTokenExpired
	}

	payload := token.Seed + ":" + token.URLHash + ":" + token.expiryRaw
	if !VerifySignature(payload, v.cfg.Secret, token.Signature) {
		return nil, ErrBadSignature
	}

	if !meetsDifficulty(digestHex(rawToken, nonce), v.cfg.Difficulty) {
		return nil, ErrInvalidProofOfWork
	}

	return token, nil
}

func meetsDifficulty(digest string, difficulty int) bool {
	if difficulty > len(digest) {
		return false
	}

	return strings.HasPrefix(digest, strings.Repeat("0", difficulty))
}
