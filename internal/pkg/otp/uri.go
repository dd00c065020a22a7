package otp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	libotp "github.com/pquerna/otp"
)

const uriScheme = "otpauth"

// Params holds the credential fields carried by an otpauth URI.
//
// Period is only meaningful for TOTP and Counter only for HOTP; ParseURI
// leaves the other one zero.
type Params struct {
	Kind      Kind
	Name      string
	Issuer    string
	Secret    []byte
	Algorithm Algorithm
	Digits    int
	Period    uint64
	Counter   uint64
}

// BuildURI renders p as
// otpauth://{kind}/{issuer:}{name}?secret=..&issuer=..&algorithm=..&digits=..&{period|counter}=..
func BuildURI(p Params) string {
	label := escapeLabel(p.Name)
	if p.Issuer != "" {
		label = escapeLabel(p.Issuer) + ":" + label
	}

	alg := p.Algorithm
	if alg == "" {
		alg = AlgorithmSHA1
	}

	q := url.Values{}
	q.Set("secret", strings.TrimRight(EncodeSecret(p.Secret), "="))
	if p.Issuer != "" {
		q.Set("issuer", p.Issuer)
	}
	q.Set("algorithm", alg.String())
	q.Set("digits", strconv.Itoa(p.Digits))

	switch p.Kind {
	case KindHOTP:
		q.Set("counter", strconv.FormatUint(p.Counter, 10))
	default:
		period := p.Period
		if period == 0 {
			period = DefaultPeriod
		}
		q.Set("period", strconv.FormatUint(period, 10))
	}

	return uriScheme + "://" + p.Kind.String() + "/" + label + "?" + q.Encode()
}

// ParseURI is the inverse of BuildURI. Missing algorithm, digits, period and
// counter default to SHA1, 6, 30 and 0.
func ParseURI(text string) (Params, error) {
	text = strings.TrimSpace(text)

	u, err := url.Parse(text)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}
	if !strings.EqualFold(u.Scheme, uriScheme) {
		return Params{}, fmt.Errorf("%w: scheme must be %s", ErrMalformedURI, uriScheme)
	}

	key, err := libotp.NewKeyFromURL(text)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}

	kind, err := ParseKind(key.Type())
	if err != nil {
		return Params{}, fmt.Errorf("%w: type must be totp or hotp", ErrMalformedURI)
	}

	if strings.TrimSpace(key.Secret()) == "" {
		return Params{}, fmt.Errorf("%w: secret is required", ErrMalformedURI)
	}
	secret, err := DecodeSecret(key.Secret())
	if err != nil {
		return Params{}, err
	}

	q := u.Query()
	alg, err := ParseAlgorithm(q.Get("algorithm"))
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}

	digits, err := intParam(q, "digits", DefaultDigits)
	if err != nil {
		return Params{}, err
	}

	p := Params{
		Kind:      kind,
		Name:      strings.TrimSpace(key.AccountName()),
		Issuer:    strings.TrimSpace(key.Issuer()),
		Secret:    secret,
		Algorithm: alg,
		Digits:    int(digits),
	}

	switch kind {
	case KindHOTP:
		if p.Counter, err = intParam(q, "counter", 0); err != nil {
			return Params{}, err
		}
	default:
		if p.Period, err = intParam(q, "period", DefaultPeriod); err != nil {
			return Params{}, err
		}
	}

	return p, nil
}

func intParam(q url.Values, key string, def uint64) (uint64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrMalformedURI, key)
	}

	return v, nil
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}
