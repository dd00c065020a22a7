package otp

import (
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	libotp "github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

var (
	// ErrInvalidSecretEncoding is returned when a secret is not valid base32 or decodes to nothing.
	ErrInvalidSecretEncoding = errors.New("otp: invalid secret encoding")
	// ErrMalformedURI is returned when an otpauth URI cannot be parsed.
	ErrMalformedURI = errors.New("otp: malformed uri")
	// ErrInvalidCodeFormat is returned when a candidate code is not a numeric string of the expected length.
	ErrInvalidCodeFormat = errors.New("otp: invalid code format")
	// ErrUnsupportedAlgorithm is returned for hash algorithms other than SHA1, SHA256 and SHA512.
	ErrUnsupportedAlgorithm = errors.New("otp: unsupported algorithm")
	// ErrUnsupportedDigits is returned when digits is outside MinDigits..MaxDigits.
	ErrUnsupportedDigits = errors.New("otp: unsupported digits")
)

const (
	// MinDigits is the shortest code length accepted.
	MinDigits = 6
	// MaxDigits is the longest code length accepted.
	MaxDigits = 8
	// DefaultDigits is used when a URI carries no digits parameter.
	DefaultDigits = 6
	// DefaultPeriod is the TOTP step length in seconds used when none is given.
	DefaultPeriod uint64 = 30
	// DefaultSecretSize is the number of random bytes in a generated secret (160 bits).
	DefaultSecretSize = 20
)

// Kind distinguishes time-based from counter-based credentials.
type Kind string

const (
	KindTOTP Kind = "totp"
	KindHOTP Kind = "hotp"
)

// ParseKind parses a kind case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTOTP, KindHOTP:
		return k, nil
	default:
		return "", fmt.Errorf("otp: unknown kind %q", s)
	}
}

func (k Kind) String() string { return string(k) }

// Algorithm is the HMAC hash used for code computation.
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "SHA1"
	AlgorithmSHA256 Algorithm = "SHA256"
	AlgorithmSHA512 Algorithm = "SHA512"
)

// ParseAlgorithm parses an algorithm name case-insensitively. An empty string yields SHA1.
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return AlgorithmSHA1, nil
	}

	switch a := Algorithm(strings.ReplaceAll(s, "-", "")); a {
	case AlgorithmSHA1, AlgorithmSHA256, AlgorithmSHA512:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, s)
	}
}

func (a Algorithm) String() string { return string(a) }

func (a Algorithm) lib() (libotp.Algorithm, error) {
	switch a {
	case AlgorithmSHA1:
		return libotp.AlgorithmSHA1, nil
	case AlgorithmSHA256:
		return libotp.AlgorithmSHA256, nil
	case AlgorithmSHA512:
		return libotp.AlgorithmSHA512, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
}

// ValidDigits reports whether d is an accepted code length.
func ValidDigits(d int) bool {
	return d >= MinDigits && d <= MaxDigits
}

// ComputeCode returns the zero-padded decimal code for secret at movingFactor.
//
// The moving factor is the counter for HOTP or TimeStep(now, period) for TOTP.
func ComputeCode(secret []byte, movingFactor uint64, alg Algorithm, digits int) (string, error) {
	if len(secret) == 0 {
		return "", ErrInvalidSecretEncoding
	}
	if !ValidDigits(digits) {
		return "", fmt.Errorf("%w: %d", ErrUnsupportedDigits, digits)
	}
	la, err := alg.lib()
	if err != nil {
		return "", err
	}

	return hotp.GenerateCodeCustom(base32.StdEncoding.EncodeToString(secret), movingFactor, hotp.ValidateOpts{
		Digits:    libotp.Digits(digits),
		Algorithm: la,
	})
}

// TimeStep returns floor(unix / period). Times before the epoch map to step 0.
func TimeStep(unix int64, period uint64) uint64 {
	if unix <= 0 || period == 0 {
		return 0
	}
	return uint64(unix) / period
}

// TimeRemaining returns the seconds left in the step containing unix.
func TimeRemaining(unix int64, period uint64) uint64 {
	if period == 0 {
		return 0
	}
	if unix < 0 {
		unix = 0
	}
	return period - uint64(unix)%period
}

// CheckCodeFormat verifies code is exactly digits ASCII decimal characters.
func CheckCodeFormat(code string, digits int) error {
	if len(code) != digits {
		return ErrInvalidCodeFormat
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return ErrInvalidCodeFormat
		}
	}
	return nil
}

func equalCode(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
