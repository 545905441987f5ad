package memory

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadIntLittleEndian(t *testing.T) {
	r := NewReader([]byte{0xff, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12, 0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})

	i8, err := ReadInt[int8](r)
	require.NoError(t, err)
	assert.Equal(t, int8(-1), i8)

	u16, err := ReadInt[uint16](r)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := ReadInt[uint32](r)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), u32)

	i64, err := ReadInt[int64](r)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), i64)
	assert.Equal(t, 0, r.Remaining())
}

func TestWriteIntMatchesRead(t *testing.T) {
	w := NewWriter()
	WriteInt(w, int32(-7))
	WriteInt(w, uint16(513))
	WriteFloat32(w, 1.5)
	WriteFloat64(w, -0.25)

	r := NewReader(w.Bytes())
	i32, err := ReadInt[int32](r)
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i32)
	u16, err := ReadInt[uint16](r)
	require.NoError(t, err)
	assert.Equal(t, uint16(513), u16)
	f32, err := ReadFloat32(r)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f32)
	f64, err := ReadFloat64(r)
	require.NoError(t, err)
	assert.Equal(t, -0.25, f64)
}

func TestShortReadReportsOffset(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	_, err := r.Bytes(2)
	require.NoError(t, err)

	_, err = ReadInt[uint32](r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	var eofErr *EOFError
	require.True(t, errors.As(err, &eofErr))
	assert.Equal(t, 2, eofErr.Offset)
	assert.Equal(t, 4, eofErr.Want)
	assert.Equal(t, 1, eofErr.Have)
}

func TestSubKeepsAbsoluteOffsets(t *testing.T) {
	r := NewReader([]byte{0, 0, 1, 2, 3, 4, 9})
	_, err := r.Bytes(2)
	require.NoError(t, err)

	sub, err := r.Sub(4)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Offset())
	assert.Equal(t, 6, r.Offset())

	_, err = sub.Bytes(3)
	require.NoError(t, err)
	_, err = sub.Bytes(2)
	var eofErr *EOFError
	require.True(t, errors.As(err, &eofErr))
	assert.Equal(t, 5, eofErr.Offset)

	assert.Equal(t, []byte{9}, r.Rest())
	assert.Equal(t, 0, r.Remaining())
}
