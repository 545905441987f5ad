package gvas

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Some games wrap the GVAS stream in a save header followed by zlib
// compressed chunks.

type SaveHeader struct {
	Crc                 uint32
	BytesWritten        uint32
	SaveGameFileVersion int32
}

type CompressedChunkHeader struct {
	PackageFileTag              uint64
	LoadingCompressionChunkSize uint64
	Compressor                  byte
	CompressedSize              uint64
	UncompressedSize            uint64
	BlockCompressedSize         uint64
	BlockUncompressedSize       uint64
}

const (
	PACKAGE_FILE_TAG               = 0x9E2A83C1
	ARCHIVE_V2_HEADER_TAG          = PACKAGE_FILE_TAG | (uint64(0x22222222) << 32)
	LOADING_COMPRESSION_CHUNK_SIZE = 131072

	compressorZlib = 3

	maxCompressedSize   = 64 * 1024 * 1024
	maxDecompressedSize = 256 * 1024 * 1024
)

type Format int

const (
	FormatUnknown Format = iota
	FormatGVAS
	FormatCompressed
)

func (f Format) String() string {
	switch f {
	case FormatGVAS:
		return "gvas"
	case FormatCompressed:
		return "compressed"
	}
	return "unknown"
}

// Sniff tells a plain GVAS stream from a compressed envelope.
func Sniff(data []byte) Format {
	if bytes.HasPrefix(data, []byte(FileTypeTag)) {
		return FormatGVAS
	}
	const tagOffset = 12
	if len(data) >= tagOffset+8 {
		tag := binary.LittleEndian.Uint64(data[tagOffset:])
		if tag == ARCHIVE_V2_HEADER_TAG || tag == PACKAGE_FILE_TAG {
			return FormatCompressed
		}
	}
	return FormatUnknown
}

// Envelope is a decompressed save: the outer header, the tag of its chunks
// and the joined chunk contents.
type Envelope struct {
	Header  SaveHeader
	Tag     uint64
	Payload []byte
}

func decompressData(data []byte, limit int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open zlib stream: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	// one extra byte tells an oversized chunk from one that fits exactly
	n, err := io.Copy(&buf, io.LimitReader(zr, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to copy: %w", err)
	}
	if n > int64(limit) {
		return nil, fmt.Errorf("chunk inflates past its declared %d bytes", limit)
	}
	return buf.Bytes(), nil
}

// Decompress unpacks a compressed envelope.
func Decompress(data []byte) (*Envelope, error) {
	if len(data) > maxCompressedSize {
		return nil, fmt.Errorf("%w: compressed data is too large", ErrMalformedHeader)
	}
	r := bytes.NewReader(data)

	result := &Envelope{}
	if err := binary.Read(r, binary.LittleEndian, &result.Header); err != nil {
		return nil, fmt.Errorf("%w: failed to read save header: %w", ErrMalformedHeader, err)
	}

	var payload bytes.Buffer
	for r.Len() > 0 {
		offset := len(data) - r.Len()
		chunkHeader := CompressedChunkHeader{}
		if err := binary.Read(r, binary.LittleEndian, &chunkHeader); err != nil {
			return nil, &DecodeError{Kind: ErrTruncatedStream, Offset: offset, Path: "chunk header", Err: err}
		}
		if chunkHeader.PackageFileTag != ARCHIVE_V2_HEADER_TAG && chunkHeader.PackageFileTag != PACKAGE_FILE_TAG {
			return nil, &DecodeError{Kind: ErrMalformedHeader, Offset: offset,
				Err: fmt.Errorf("bad chunk tag %#x", chunkHeader.PackageFileTag)}
		}
		if result.Tag == 0 {
			result.Tag = chunkHeader.PackageFileTag
		}
		if chunkHeader.CompressedSize > uint64(r.Len()) {
			return nil, &DecodeError{Kind: ErrTruncatedStream, Offset: offset,
				Err: fmt.Errorf("chunk declares %d bytes, %d remain", chunkHeader.CompressedSize, r.Len())}
		}
		if chunkHeader.UncompressedSize > maxDecompressedSize-uint64(payload.Len()) {
			return nil, &DecodeError{Kind: ErrMalformedHeader, Offset: offset,
				Err: fmt.Errorf("decompressed data would exceed %d bytes", maxDecompressedSize)}
		}

		chunk := make([]byte, chunkHeader.CompressedSize)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, &DecodeError{Kind: ErrTruncatedStream, Offset: offset, Err: err}
		}
		buf, err := decompressData(chunk, int(chunkHeader.UncompressedSize))
		if err != nil {
			return nil, &DecodeError{Kind: ErrMalformedHeader, Offset: offset, Err: err}
		}
		if uint64(len(buf)) != chunkHeader.UncompressedSize {
			return nil, &DecodeError{Kind: ErrLengthMismatch, Offset: offset,
				Err: fmt.Errorf("chunk inflated to %d bytes, header says %d", len(buf), chunkHeader.UncompressedSize)}
		}
		payload.Write(buf)
	}
	if payload.Len() == 0 {
		return nil, fmt.Errorf("%w: envelope has no chunks", ErrMalformedHeader)
	}
	result.Payload = payload.Bytes()
	return result, nil
}

// Compress packs the payload into chunks of LOADING_COMPRESSION_CHUNK_SIZE
// bytes behind the envelope's save header.
func (e *Envelope) Compress() ([]byte, error) {
	if len(e.Payload) == 0 {
		return nil, errors.New("compress: empty payload")
	}
	tag := e.Tag
	if tag == 0 {
		tag = ARCHIVE_V2_HEADER_TAG
	}

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, e.Header); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	for start := 0; start < len(e.Payload); start += LOADING_COMPRESSION_CHUNK_SIZE {
		end := min(start+LOADING_COMPRESSION_CHUNK_SIZE, len(e.Payload))
		block := e.Payload[start:end]

		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		if _, err := zw.Write(block); err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}

		chunkHeader := CompressedChunkHeader{
			PackageFileTag:              tag,
			LoadingCompressionChunkSize: LOADING_COMPRESSION_CHUNK_SIZE,
			Compressor:                  compressorZlib,
			CompressedSize:              uint64(compressed.Len()),
			UncompressedSize:            uint64(len(block)),
			BlockCompressedSize:         uint64(compressed.Len()),
			BlockUncompressedSize:       uint64(len(block)),
		}
		if err := binary.Write(&out, binary.LittleEndian, chunkHeader); err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
		out.Write(compressed.Bytes())
	}
	return out.Bytes(), nil
}
