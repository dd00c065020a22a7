package usecase

import (
	"bytes"
	"io"
	"time"
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
