package pow

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time. Tests replace it to control expiry.
type Clock func() time.Time

// Config holds the parameters shared by the issuer and the verifier.
type Config struct {
	Secret     []byte
	Difficulty int
	TTL        time.Duration
}

// Challenge is a signed, time-bounded proof-of-work challenge for one URL.
type Challenge struct {
	URL        string
	URLHash    uint64
	Token      string
	Difficulty int
	ExpiresAt  time.Time
}

// Issuer builds stateless challenges. Nothing about an issued token is remembered.
type Issuer struct {
	cfg Config
	now Clock
}

// NewIssuer creates a new challenge issuer.
func NewIssuer(cfg Config, now Clock) *Issuer {
	if now == nil {
		now = time.Now
	}

	return &Issuer{cfg: cfg, now: now}
}

// Issue returns a fresh challenge bound to rawURL.
func (i *Issuer) Issue(rawURL string) (*Challenge, error) {
	canonical, _, err := CanonicalURL(rawURL)
	if err != nil {
		return nil, err
	}

	seed, err := newSeed()
	if err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}

	urlHash := CanonicalHash(canonical)
	expiresAt := i.now().Add(i.cfg.TTL)

	return &Challenge{
		URL:        canonical,
		URLHash:    urlHash,
		Token:      EncodeToken(seed, urlHash, expiresAt.Unix(), i.cfg.Secret),
		Difficulty: i.cfg.Difficulty,
		ExpiresAt:  time.Unix(expiresAt.Unix(), 0),
	}, nil
}

// EncodeToken signs seed:urlHash:expiry and returns base64(seed:urlHash:expiry:signature).
func EncodeToken(seed string, urlHash uint64, expiry int64, secret []byte) string {
	payload := seed + ":" + strconv.FormatUint(urlHash, 10) + ":" + strconv.FormatInt(expiry, 10)

	return base64.StdEncoding.EncodeToString([]byte(payload + ":" + Sign(payload, secret)))
}

// newSeed returns 128 random bits as 32 lowercase hex characters.
func newSeed() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(id.String(), "-", ""), nil
}
