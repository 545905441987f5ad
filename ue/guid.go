package ue

import (
	"github.com/google/uuid"

	"gvas-edit/memory"
)

// Guid is 16 raw bytes, stored and written without byte swapping.
type Guid [16]byte

func ParseGuid(s string) (Guid, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Guid{}, err
	}
	return Guid(id), nil
}

func (g Guid) String() string { return uuid.UUID(g).String() }

func (g Guid) IsZero() bool { return g == Guid{} }

func (g Guid) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

func (g *Guid) UnmarshalText(text []byte) error {
	parsed, err := ParseGuid(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func ReadGuid(r *memory.Reader) (Guid, error) {
	var guid Guid
	b, err := r.Bytes(len(guid))
	if err != nil {
		return guid, err
	}
	copy(guid[:], b)
	return guid, nil
}

func WriteGuid(w *memory.Writer, guid Guid) {
	w.WriteBytes(guid[:])
}
