package entity

import (
	"math"
	"time"

	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

// Source records how a credential entered the key ring.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceManual    Source = "manual"
	SourceURI       Source = "uri"
	SourceQR        Source = "qr"
)

func (s Source) String() string { return string(s) }

// MaxCounter is the largest HOTP counter every store can hold.
const MaxCounter uint64 = math.MaxInt64

// Credential is a stored OTP key. Counter is the only field that changes after
// creation, and only through a conditional advance.
type Credential struct {
	ID        string
	Name      string
	Secret    []byte
	Kind      otp.Kind
	Algorithm otp.Algorithm
	Digits    int
	Period    uint64
	Counter   uint64
	Issuer    string
	CreatedAt time.Time
}

func (c Credential) IsHOTP() bool { return c.Kind == otp.KindHOTP }

// Params converts the credential into otpauth URI fields.
func (c Credential) Params() otp.Params {
	p := otp.Params{
		Kind:      c.Kind,
		Name:      c.Name,
		Issuer:    c.Issuer,
		Secret:    c.Secret,
		Algorithm: c.Algorithm,
		Digits:    c.Digits,
	}
	if c.IsHOTP() {
		p.Counter = c.Counter
	} else {
		p.Period = c.Period
	}
	return p
}

// URI returns the otpauth enrolment URI of the credential.
func (c Credential) URI() string {
	return otp.BuildURI(c.Params())
}

// TOTPVerdict is the outcome of a TOTP validation.
type TOTPVerdict struct {
	Valid         bool
	TimeRemaining uint64
}

// HOTPVerdict is the outcome of a HOTP validation. Counter is the stored value
// in effect when the verdict was produced.
type HOTPVerdict struct {
	Valid   bool
	Counter uint64
}
