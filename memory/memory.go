package memory

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type Int interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64
}

// EOFError reports a read that ran past the end of the buffer.
type EOFError struct {
	Offset int
	Want   int
	Have   int
}

func (e *EOFError) Error() string {
	return fmt.Sprintf("unexpected end of data at offset %d: want %d bytes, have %d", e.Offset, e.Want, e.Have)
}

func (e *EOFError) Unwrap() error { return io.ErrUnexpectedEOF }

// Reader is a cursor over an in-memory buffer. Offsets are absolute, so a
// reader returned by Sub reports positions relative to the original buffer.
type Reader struct {
	buf  []byte
	off  int
	base int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the absolute position of the cursor.
func (r *Reader) Offset() int { return r.base + r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, &EOFError{Offset: r.Offset(), Want: n, Have: r.Remaining()}
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Rest consumes and returns all unread bytes.
func (r *Reader) Rest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}

// Since returns the bytes consumed between the absolute offset start and
// the cursor.
func (r *Reader) Since(start int) []byte {
	return r.buf[start-r.base : r.off]
}

// Sub carves the next n bytes into a bounded reader and advances past them.
func (r *Reader) Sub(n int) (*Reader, error) {
	start := r.Offset()
	b, err := r.Bytes(n)
	if err != nil {
		return nil, err
	}
	return &Reader{buf: b, base: start}, nil
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.Remaining() == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.buf[r.off:])
	r.off += n
	return n, nil
}

func ReadInt[T Int](r *Reader) (T, error) {
	var value T
	b, err := r.Bytes(binary.Size(value))
	if err != nil {
		return 0, err
	}
	var u uint64
	switch len(b) {
	case 1:
		u = uint64(b[0])
	case 2:
		u = uint64(binary.LittleEndian.Uint16(b))
	case 4:
		u = uint64(binary.LittleEndian.Uint32(b))
	default:
		u = binary.LittleEndian.Uint64(b)
	}
	return T(u), nil
}

func ReadFloat32(r *Reader) (float32, error) {
	bits, err := ReadInt[uint32](r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func ReadFloat64(r *Reader) (float64, error) {
	bits, err := ReadInt[uint64](r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// Writer accumulates little-endian output. Writes to the underlying buffer
// cannot fail, so its methods do not return errors.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *Writer) WriteBytes(p []byte) { w.buf.Write(p) }

func (w *Writer) Len() int { return w.buf.Len() }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func WriteInt[T Int](w *Writer, value T) {
	var b [8]byte
	n := binary.Size(value)
	u := uint64(value)
	switch n {
	case 1:
		b[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(b[:], uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(b[:], uint32(u))
	default:
		binary.LittleEndian.PutUint64(b[:], u)
	}
	w.buf.Write(b[:n])
}

func WriteFloat32(w *Writer, value float32) {
	WriteInt(w, math.Float32bits(value))
}

func WriteFloat64(w *Writer, value float64) {
	WriteInt(w, math.Float64bits(value))
}
