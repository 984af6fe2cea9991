package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// NewRandomString returns a URL-safe token with byteLen bytes of entropy,
// used for link-style verification and reset tokens.
func NewRandomString(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewNumericCode returns a zero-padded numeric code of the given length
// drawn from crypto/rand, matching OTP-style verification UX.
func NewNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("invalid code length %d", digits)
	}
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
