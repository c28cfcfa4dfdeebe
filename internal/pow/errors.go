package pow

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrMalformedToken     = errors.New("malformed token")
	ErrURLMismatch        = errors.New("url hash mismatch")
	ErrTokenExpired       = errors.New("token expired")
	ErrBadSignature       = errors.New("bad signature")
	ErrInvalidProofOfWork = errors.New("invalid proof-of-work")
	ErrTokenReused        = errors.New("token already used")
)
