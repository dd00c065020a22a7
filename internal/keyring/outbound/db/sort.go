package db

import (
	"cmp"
	"slices"
	"time"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
)

func unixMicro(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// sortCredentials orders newest first, then by name.
func sortCredentials(creds []entity.Credential) {
	slices.SortFunc(creds, func(a, b entity.Credential) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}
