// Package credentials generates the one-time password handed to the
// directory when an identity is created. The value is returned to the
// caller exactly once and must never be persisted or logged.
package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Character classes the generated credential draws from. Every credential
// contains at least one character from each class.
const (
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*-_=+"
)

// minLength is the hard floor; it holds even if the configured policy asks
// for less.
const minLength = 12

// Policy carries the configurable knobs for credential generation.
type Policy struct {
	MinLength int
}

// Generate creates a one-time credential satisfying the policy: at least
// MinLength characters with upper, lower, digit, and symbol classes all
// represented. Randomness comes from crypto/rand throughout.
func Generate(policy Policy) (string, error) {
	length := policy.MinLength
	if length < minLength {
		length = minLength
	}

	classes := []string{upperChars, lowerChars, digitChars, symbolChars}
	all := upperChars + lowerChars + digitChars + symbolChars

	buf := make([]byte, 0, length)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates, so the class-guaranteed characters do not cluster at
	// the front.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func randomChar(alphabet string) (byte, error) {
	i, err := randomIndex(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("could not generate credential: %w", err)
	}
	return int(v.Int64()), nil
}
