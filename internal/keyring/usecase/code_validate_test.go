package usecase

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

func TestValidateCode_MalformedCodeSkipsStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	for _, code := range []string{"12a456", "", "12345", "123456789", "１２３４５６"} {
		_, err := f.uc.ValidateCode(ctx, ValidateCodeInput{Name: "anything", Code: code})
		require.ErrorIs(t, err, entity.ErrInvalidCodeFormat, code)
		requireStatus(t, err, http.StatusBadRequest)
	}

	gets, advances := f.db.counts()
	assert.Zero(t, gets)
	assert.Zero(t, advances)
}

func TestValidateCode_WrongLengthForStoredDigits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.issue(t, GenerateCredentialInput{Name: "eight", Kind: "totp", Digits: 8})

	_, err := f.uc.ValidateCode(context.Background(), ValidateCodeInput{Name: "eight", Code: "287082"})
	assert.ErrorIs(t, err, entity.ErrInvalidCodeFormat)
}

func TestValidateCode_UnknownCredential(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.uc.ValidateCode(context.Background(), ValidateCodeInput{Name: "ghost", Code: "123456"})
	require.ErrorIs(t, err, entity.ErrCredentialNotFound)
	requireStatus(t, err, http.StatusNotFound)
}

func TestValidateCode_TOTPDriftWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cred := f.issue(t, GenerateCredentialInput{Name: "clock", Kind: "totp"})
	require.Equal(t, rfcSecret, cred.Secret)

	// code for step 20, i.e. unix 600..629
	code, err := otp.ComputeCode(rfcSecret, 20, otp.AlgorithmSHA1, 6)
	require.NoError(t, err)

	tests := []struct {
		unix      int64
		valid     bool
		remaining uint64
	}{
		{unix: 545, valid: false, remaining: 25}, // step 18
		{unix: 575, valid: true, remaining: 25},  // step 19
		{unix: 600, valid: true, remaining: 30},  // step 20
		{unix: 629, valid: true, remaining: 1},   // step 20
		{unix: 659, valid: true, remaining: 1},   // step 21
		{unix: 660, valid: false, remaining: 30}, // step 22
	}
	for _, tt := range tests {
		f.clock.Set(unixTime(tt.unix))

		out, err := f.uc.ValidateCode(context.Background(), ValidateCodeInput{Name: "clock", Code: code})
		require.NoError(t, err)
		require.NotNil(t, out.TOTP)
		assert.Nil(t, out.HOTP)
		assert.Equal(t, tt.valid, out.TOTP.Valid, "unix %d", tt.unix)
		assert.Equal(t, tt.remaining, out.TOTP.TimeRemaining, "unix %d", tt.unix)
	}

	_, advances := f.db.counts()
	assert.Zero(t, advances)
}

func TestValidateCode_HOTPResyncAdvancesPastMatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.issue(t, GenerateCredentialInput{Name: "token", Kind: "hotp"})
	ctx := context.Background()

	out, err := f.uc.ValidateCode(ctx, ValidateCodeInput{Name: "token", Code: "287082"})
	require.NoError(t, err)
	require.NotNil(t, out.HOTP)
	assert.True(t, out.Valid())
	assert.Equal(t, uint64(2), out.HOTP.Counter)

	// replay of a consumed code
	out, err = f.uc.ValidateCode(ctx, ValidateCodeInput{Name: "token", Code: "287082"})
	require.NoError(t, err)
	assert.False(t, out.Valid())
	assert.Equal(t, uint64(2), out.HOTP.Counter)

	events := f.drain(t)
	require.Len(t, events.advanced, 1)
	assert.Equal(t, uint64(0), events.advanced[0].From)
	assert.Equal(t, uint64(2), events.advanced[0].To)
	assert.Equal(t, "validate", events.advanced[0].Reason)
}

func TestValidateCode_HOTPWindowEdge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.issue(t, GenerateCredentialInput{Name: "token", Kind: "hotp"})
	ctx := context.Background()

	beyond, err := otp.ComputeCode(rfcSecret, 11, otp.AlgorithmSHA1, 6)
	require.NoError(t, err)
	out, err := f.uc.ValidateCode(ctx, ValidateCodeInput{Name: "token", Code: beyond})
	require.NoError(t, err)
	assert.False(t, out.Valid())
	assert.Equal(t, uint64(0), out.HOTP.Counter)

	edge, err := otp.ComputeCode(rfcSecret, 10, otp.AlgorithmSHA1, 6)
	require.NoError(t, err)
	out, err = f.uc.ValidateCode(ctx, ValidateCodeInput{Name: "token", Code: edge})
	require.NoError(t, err)
	assert.True(t, out.Valid())
	assert.Equal(t, uint64(11), out.HOTP.Counter)

	stored, err := f.db.Memory.GetCredential(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), stored.Counter)
}

func TestValidateCode_HOTPConcurrentSameCodeSucceedsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.issue(t, GenerateCredentialInput{Name: "race", Kind: "hotp"})

	const workers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		valid int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.uc.ValidateCode(context.Background(), ValidateCodeInput{Name: "race", Code: "755224"})
			if err != nil {
				assert.ErrorIs(t, err, entity.ErrConflict)
				return
			}
			if out.Valid() {
				mu.Lock()
				valid++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, valid)

	stored, err := f.db.Memory.GetCredential(context.Background(), "race")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.Counter)
}

func TestValidateCode_ConflictRetriesExhausted(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.issue(t, GenerateCredentialInput{Name: "busy", Kind: "hotp"})
	f.db.advanceErr = entity.ErrConflict

	_, err := f.uc.ValidateCode(context.Background(), ValidateCodeInput{Name: "busy", Code: "755224"})
	require.ErrorIs(t, err, entity.ErrConflict)
	requireStatus(t, err, http.StatusConflict)

	gets, advances := f.db.counts()
	assert.Equal(t, 4, advances) // first attempt + 3 retries
	assert.Equal(t, 4, gets)     // initial load + one reload per retry
}

func TestValidateCode_ConflictNotRetriedByDefault(t *testing.T) {
	t.Parallel()

	doc := strings.Replace(testConfig, "max_conflict_retries: 3", "", 1)
	require.NotEqual(t, testConfig, doc)

	f := newFixture(t, withConfigYAML(t, doc))
	f.issue(t, GenerateCredentialInput{Name: "busy", Kind: "hotp"})
	f.db.advanceErr = entity.ErrConflict

	_, err := f.uc.ValidateCode(context.Background(), ValidateCodeInput{Name: "busy", Code: "755224"})
	require.ErrorIs(t, err, entity.ErrConflict)
	requireStatus(t, err, http.StatusConflict)

	gets, advances := f.db.counts()
	assert.Equal(t, 1, advances)
	assert.Equal(t, 1, gets)
}
