package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// NewOTP returns a uniformly random numeric code of the given length.
// Each digit is drawn independently from crypto/rand.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// HashOTP returns the SHA-256 digest of a one-time code. Only digests
// are stored or compared.
func HashOTP(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// HashToken returns the lowercase hex SHA-256 digest of a bearer token.
// Session entries and blacklist keys hold this digest, never the raw
// token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
