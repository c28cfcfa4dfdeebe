package pow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL normalizes an absolute URL so equivalent spellings hash identically.
// - Lowercases the scheme and host
// - Removes default ports (80 for http, 443 for https)
// - Uses "/" as the path of http(s) URLs with an empty path
//
// It returns the canonical string and the lowercased hostname, which is the shard key.
func CanonicalURL(rawURL string) (string, string, error) {
	if rawURL == "" {
		return "", "", fmt.Errorf("%w: empty url", ErrInvalidInput)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if u.Scheme == "" || u.Host == "" || u.Hostname() == "" {
		return "", "", fmt.Errorf("%w: url must be absolute", ErrInvalidInput)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	host := u.Host
	if strings.HasSuffix(host, ":80") && u.Scheme == "http" {
		u.Host = strings.TrimSuffix(host, ":80")
	} else if strings.HasSuffix(host, ":443") && u.Scheme == "https" {
		u.Host = strings.TrimSuffix(host, ":443")
	}

	if u.Path == "" && (u.Scheme == "http" || u.Scheme == "https") {
		u.Path = "/"
	}

	return u.String(), u.Hostname(), nil
}

// CanonicalHash returns the first 8 bytes of SHA256(url) as a big-endian integer.
// It is a fast pre-check only: stores always key on the full URL as well.
func CanonicalHash(canonicalURL string) uint64 {
	sum := sha256.Sum256([]byte(canonicalURL))

	return binary.BigEndian.Uint64(sum[:8])
}

// Sign returns the hex encoded HMAC-SHA256 of payload under secret.
func Sign(payload string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signatureHex is the HMAC of payload under secret.
func VerifySignature(payload string, secret []byte, signatureHex string) bool {
	got, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))

	return hmac.Equal(got, mac.Sum(nil))
}

// digestHex is the proof-of-work digest: lowercase hex SHA256 of "token:nonce".
func digestHex(token string, nonce int64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d", token, nonce))

	return hex.EncodeToString(sum[:])
}
