package uid

import "github.com/google/uuid"

// UUID generates time-ordered RFC 9562 UUID v7 strings.
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate returns a new UUID string.
func (u *UUID) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString() // fallback: uuidV4
	}
	return id.String()
}

// Sequence returns fixed IDs in order, then repeats the last one. Intended for tests.
type Sequence struct {
	ids []string
	pos int
}

// NewSequence returns a Sequence over ids.
func NewSequence(ids ...string) *Sequence {
	return &Sequence{ids: ids}
}

// Generate returns the next ID of the sequence.
func (s *Sequence) Generate() string {
	if len(s.ids) == 0 {
		return ""
	}
	if s.pos >= len(s.ids) {
		return s.ids[len(s.ids)-1]
	}
	id := s.ids[s.pos]
	s.pos++
	return id
}
