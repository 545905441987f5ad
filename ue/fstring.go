package ue

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"golang.org/x/text/encoding/unicode"

	"gvas-edit/memory"
)

var ErrInvalidEncoding = errors.New("invalid string encoding")

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// FString is a length-prefixed engine string. The sign of the prefix selects
// the character width, so the width is kept alongside the text to write the
// string back the way it was read.
type FString struct {
	Value string
	// Wide strings are stored as UTF-16LE (negative length prefix).
	Wide bool
	// Null strings have a zero length prefix and no terminator.
	Null bool
}

// NewFString picks UTF-16 for anything outside ASCII, as the engine does.
func NewFString(s string) FString {
	return FString{Value: s, Wide: !isASCII(s)}
}

func (s FString) String() string { return s.Value }

// Inferred reports whether the string uses the width NewFString would pick.
func (s FString) Inferred() bool {
	return !s.Null && s.Wide == !isASCII(s.Value)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func ReadFString(r *memory.Reader) (FString, error) {
	start := r.Offset()
	stringSize, err := memory.ReadInt[int32](r)
	if err != nil {
		return FString{}, err
	}
	if stringSize == 0 {
		return FString{Null: true}, nil
	}

	if stringSize > 0 {
		stringData, err := r.Bytes(int(stringSize))
		if err != nil {
			return FString{}, err
		}
		if stringData[len(stringData)-1] != 0 {
			return FString{}, fmt.Errorf("string at offset %d is missing its terminator: %w", start, ErrInvalidEncoding)
		}
		return FString{Value: string(stringData[:len(stringData)-1])}, nil
	}

	units := -int64(stringSize)
	stringData, err := r.Bytes(int(units * 2))
	if err != nil {
		return FString{}, err
	}
	n := len(stringData)
	if stringData[n-2] != 0 || stringData[n-1] != 0 {
		return FString{}, fmt.Errorf("wide string at offset %d is missing its terminator: %w", start, ErrInvalidEncoding)
	}
	raw := stringData[:n-2]
	decoded, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return FString{}, fmt.Errorf("wide string at offset %d: %w", start, ErrInvalidEncoding)
	}
	// unpaired surrogates decode to U+FFFD and would not survive a rewrite
	reencoded, err := utf16le.NewEncoder().Bytes(decoded)
	if err != nil || !bytes.Equal(reencoded, raw) {
		return FString{}, fmt.Errorf("wide string at offset %d has unpaired surrogates: %w", start, ErrInvalidEncoding)
	}
	return FString{Value: string(decoded), Wide: true}, nil
}

// WriteFString recomputes the prefix from the current content.
func WriteFString(w *memory.Writer, s FString) error {
	if s.Null && s.Value == "" {
		memory.WriteInt(w, int32(0))
		return nil
	}
	if !s.Wide {
		memory.WriteInt(w, int32(len(s.Value)+1))
		w.WriteBytes([]byte(s.Value))
		w.WriteBytes([]byte{0})
		return nil
	}
	encoded, err := utf16le.NewEncoder().Bytes([]byte(s.Value))
	if err != nil {
		return fmt.Errorf("WriteFString: %w", err)
	}
	memory.WriteInt(w, -int32(len(encoded)/2+1))
	w.WriteBytes(encoded)
	w.WriteBytes([]byte{0, 0})
	return nil
}

type fstringJSON struct {
	Value string `json:"value"`
	Wide  bool   `json:"wide,omitempty"`
	Null  bool   `json:"null,omitempty"`
	// Bytes holds narrow strings that are not valid UTF-8, such as Latin-1
	// text, which a JSON string cannot carry.
	Bytes []byte `json:"bytes,omitempty"`
}

// MarshalJSON emits a bare string when the width can be inferred back from
// the text, and an object otherwise.
func (s FString) MarshalJSON() ([]byte, error) {
	if !utf8.ValidString(s.Value) {
		return json.Marshal(fstringJSON{Wide: s.Wide, Bytes: []byte(s.Value)})
	}
	if s.Inferred() {
		return json.Marshal(s.Value)
	}
	return json.Marshal(fstringJSON{Value: s.Value, Wide: s.Wide, Null: s.Null})
}

func (s *FString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = NewFString(value)
		return nil
	}
	var obj fstringJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Bytes != nil {
		*s = FString{Value: string(obj.Bytes), Wide: obj.Wide}
		return nil
	}
	*s = FString{Value: obj.Value, Wide: obj.Wide, Null: obj.Null}
	return nil
}
