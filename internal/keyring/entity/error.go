package entity

import (
	"errors"

	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

var (
	ErrInvalidSecretEncoding = otp.ErrInvalidSecretEncoding
	ErrMalformedURI          = otp.ErrMalformedURI
	ErrInvalidCodeFormat     = otp.ErrInvalidCodeFormat

	ErrInvalidParameters  = errors.New("keyring: invalid parameters")
	ErrDuplicateName      = errors.New("keyring: credential name already exists")
	ErrCredentialNotFound = errors.New("keyring: credential not found")
	// ErrConflict is returned by a conditional counter advance whose expected
	// value no longer matches the stored counter.
	ErrConflict = errors.New("keyring: counter changed concurrently")
)
