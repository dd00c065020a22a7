package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

func TestCredential_URIRoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range []Credential{
		{Name: "alice@example.com", Issuer: "ACME", Secret: []byte("12345678901234567890"), Kind: otp.KindTOTP, Algorithm: otp.AlgorithmSHA256, Digits: 8, Period: 60, CreatedAt: time.Unix(1, 0)},
		{Name: "hw-token", Secret: []byte("12345678901234567890"), Kind: otp.KindHOTP, Algorithm: otp.AlgorithmSHA1, Digits: 6, Counter: 42},
	} {
		p, err := otp.ParseURI(c.URI())
		require.NoError(t, err)
		assert.Equal(t, c.Params(), p)
	}
}

func TestCredential_ParamsKindSpecific(t *testing.T) {
	t.Parallel()

	totp := Credential{Kind: otp.KindTOTP, Period: 30, Counter: 9}.Params()
	assert.Equal(t, uint64(30), totp.Period)
	assert.Zero(t, totp.Counter)

	hotp := Credential{Kind: otp.KindHOTP, Period: 30, Counter: 9}.Params()
	assert.Zero(t, hotp.Period)
	assert.Equal(t, uint64(9), hotp.Counter)
	assert.True(t, Credential{Kind: otp.KindHOTP}.IsHOTP())
}
