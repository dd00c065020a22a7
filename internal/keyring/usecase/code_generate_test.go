package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

func TestGenerateCode_TOTP(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.issue(t, GenerateCredentialInput{Name: "clock", Kind: "totp"})

	out, err := f.uc.GenerateCode(context.Background(), GenerateCodeInput{Name: "clock"})
	require.NoError(t, err)
	assert.Equal(t, otp.KindTOTP, out.Kind)
	assert.Equal(t, "287082", out.Code)
	assert.Equal(t, uint64(1), out.TimeRemaining)

	_, advances := f.db.counts()
	assert.Zero(t, advances)
}

func TestGenerateCode_HOTPConsumesCounter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.issue(t, GenerateCredentialInput{Name: "token", Kind: "hotp"})
	ctx := context.Background()

	for i, want := range []string{"755224", "287082", "359152"} {
		out, err := f.uc.GenerateCode(ctx, GenerateCodeInput{Name: "token"})
		require.NoError(t, err)
		assert.Equal(t, want, out.Code)
		assert.Equal(t, uint64(i), out.Counter)
	}

	// the holder and a verifier sharing the record stay in sync
	res, err := f.uc.ValidateCode(ctx, ValidateCodeInput{Name: "token", Code: "969429"})
	require.NoError(t, err)
	assert.True(t, res.Valid())
	assert.Equal(t, uint64(4), res.HOTP.Counter)

	events := f.drain(t)
	require.Len(t, events.advanced, 4)
	reasons := map[string]int{}
	for _, ev := range events.advanced {
		reasons[ev.Reason]++
	}
	assert.Equal(t, map[string]int{"generate": 3, "validate": 1}, reasons)
}

func TestGenerateCode_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.uc.GenerateCode(context.Background(), GenerateCodeInput{Name: "ghost"})
	assert.ErrorIs(t, err, entity.ErrCredentialNotFound)
}
