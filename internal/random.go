package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const resumeSecretSize = 32

// NewResumeToken returns a fresh opaque login token, base64url without
// padding.
func NewResumeToken() (string, error) {
	var secret [resumeSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// HashResumeToken returns the at-rest form of a login token: the standard
// base64 encoding of its SHA-256 digest.
func HashResumeToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ValidResumeToken reports whether token has the shape produced by
// NewResumeToken.
func ValidResumeToken(token string) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return err
	}
	if len(raw) != resumeSecretSize {
		return errors.New("invalid resume token size")
	}
	return nil
}
