package otp

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURI(t *testing.T) {
	t.Parallel()

	uri := BuildURI(Params{
		Kind:      KindTOTP,
		Name:      "alice@example.com",
		Issuer:    "ACME Co",
		Secret:    rfcSecret,
		Algorithm: AlgorithmSHA256,
		Digits:    8,
		Period:    60,
	})

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, "/ACME Co:alice@example.com", u.Path)
	assert.Contains(t, uri, "/ACME%20Co:alice@example.com?")

	q := u.Query()
	assert.Equal(t, "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", q.Get("secret"))
	assert.Equal(t, "ACME Co", q.Get("issuer"))
	assert.Equal(t, "SHA256", q.Get("algorithm"))
	assert.Equal(t, "8", q.Get("digits"))
	assert.Equal(t, "60", q.Get("period"))
	assert.False(t, q.Has("counter"))
}

func TestBuildURI_HOTPCarriesCounterNotPeriod(t *testing.T) {
	t.Parallel()

	uri := BuildURI(Params{Kind: KindHOTP, Name: "bob", Secret: rfcSecret, Digits: 6, Counter: 5})

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "/bob", u.Path)
	assert.Equal(t, "5", u.Query().Get("counter"))
	assert.Equal(t, "SHA1", u.Query().Get("algorithm"))
	assert.False(t, u.Query().Has("period"))
	assert.False(t, u.Query().Has("issuer"))
}

func TestParseURI_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []Params{
		{Kind: KindTOTP, Name: "alice@example.com", Issuer: "ACME Co", Secret: rfcSecret, Algorithm: AlgorithmSHA1, Digits: 6, Period: 30},
		{Kind: KindTOTP, Name: "ops/root", Issuer: "Ops & Infra", Secret: rfcSecretSHA512, Algorithm: AlgorithmSHA512, Digits: 8, Period: 60},
		{Kind: KindHOTP, Name: "token #1", Secret: rfcSecretSHA256, Algorithm: AlgorithmSHA256, Digits: 7, Counter: 42},
		{Kind: KindHOTP, Name: "Zoë", Issuer: "Café", Secret: []byte{0x01}, Algorithm: AlgorithmSHA1, Digits: 6, Counter: 0},
	}

	for _, want := range tests {
		t.Run(want.Name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseURI(BuildURI(want))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseURI_Defaults(t *testing.T) {
	t.Parallel()

	p, err := ParseURI("otpauth://totp/Example:alice@google.com?secret=JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Equal(t, KindTOTP, p.Kind)
	assert.Equal(t, "alice@google.com", p.Name)
	assert.Equal(t, "Example", p.Issuer)
	assert.Equal(t, AlgorithmSHA1, p.Algorithm)
	assert.Equal(t, 6, p.Digits)
	assert.Equal(t, uint64(30), p.Period)
	assert.Equal(t, uint64(0), p.Counter)

	p, err = ParseURI("otpauth://hotp/device?secret=jbswy3dpehpk3pxp&algorithm=sha256")
	require.NoError(t, err)
	assert.Equal(t, KindHOTP, p.Kind)
	assert.Equal(t, "device", p.Name)
	assert.Empty(t, p.Issuer)
	assert.Equal(t, AlgorithmSHA256, p.Algorithm)
	assert.Equal(t, uint64(0), p.Counter)
	assert.Equal(t, uint64(0), p.Period)
}

func TestParseURI_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		uri  string
		err  error
	}{
		{name: "wrong scheme", uri: "https://totp/x?secret=JBSWY3DPEHPK3PXP", err: ErrMalformedURI},
		{name: "no scheme", uri: "totp/x?secret=JBSWY3DPEHPK3PXP", err: ErrMalformedURI},
		{name: "unknown type", uri: "otpauth://motp/x?secret=JBSWY3DPEHPK3PXP", err: ErrMalformedURI},
		{name: "missing type", uri: "otpauth:///x?secret=JBSWY3DPEHPK3PXP", err: ErrMalformedURI},
		{name: "missing secret", uri: "otpauth://totp/x?issuer=a", err: ErrMalformedURI},
		{name: "bad secret", uri: "otpauth://totp/x?secret=!!!", err: ErrInvalidSecretEncoding},
		{name: "bad digits", uri: "otpauth://totp/x?secret=JBSWY3DPEHPK3PXP&digits=six", err: ErrMalformedURI},
		{name: "bad period", uri: "otpauth://totp/x?secret=JBSWY3DPEHPK3PXP&period=-1", err: ErrMalformedURI},
		{name: "bad counter", uri: "otpauth://hotp/x?secret=JBSWY3DPEHPK3PXP&counter=x", err: ErrMalformedURI},
		{name: "bad algorithm", uri: "otpauth://totp/x?secret=JBSWY3DPEHPK3PXP&algorithm=md5", err: ErrMalformedURI},
		{name: "unparseable", uri: "otpauth://totp/%zz?secret=JBSWY3DPEHPK3PXP", err: ErrMalformedURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseURI(tt.uri)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
