package gguf

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

// File is a fully decoded GGUF model file: its header, its interpreted (and
// skipped-but-sized) metadata dictionary, and its tensor directory. Tensor
// bytes are not loaded until LoadTensorData is called.
type File struct {
	Header         Header
	KV             KV
	Tensors        []*TensorInfo
	DataRegionBase uint64 // offset from start of file to the tensor-data region
}

// reader wraps an io.Reader with the scratch buffer the string/array
// decoders reuse, so repeated reads of the same size don't churn the allocator.
type reader struct {
	r        io.Reader
	scratch  [16 << 10]byte
	consumed int64
}

// Decode parses a GGUF file from r: ParseHeader, then parseMetadataInto,
// then parseTensorDirectory, composed into one pass since the format is a
// single forward stream. Tensor offsets are not checked here;
// LoadTensorData checks each tensor's byte range against the file length.
func Decode(r io.Reader) (*File, error) {
	rd := &reader{r: r}

	hdr, err := ParseHeader(rd)
	if err != nil {
		return nil, err
	}

	f := &File{Header: hdr, KV: make(KV)}

	if err := parseMetadataInto(rd, hdr, f.KV); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}

	tensors, err := parseTensorDirectory(rd, hdr)
	if err != nil {
		return nil, fmt.Errorf("tensor directory: %w", err)
	}
	f.Tensors = tensors

	alignment := f.KV.Uint("general.alignment", 32)
	// The reader has no random access, so track consumed bytes ourselves:
	// 24 (header) is already past, parseMetadataInto/parseTensorDirectory each
	// advanced rd implicitly. We recompute from a byte counter instead of
	// seeking, since r may not be a Seeker.
	f.DataRegionBase = alignUp64(uint64(rd.consumed), alignment)

	return f, nil
}

// ParseHeader reads and validates the fixed 24-byte header, returning
// ErrBadFormat for a bad magic or unsupported version and ErrTruncated for
// short input.
func ParseHeader(rd *reader) (Header, error) {
	var h Header
	if err := rd.readBinary(&h.Magic); err != nil {
		return h, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: magic %#x", llamuxerr.ErrBadFormat, h.Magic)
	}
	if err := rd.readBinary(&h.Version); err != nil {
		return h, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
	}
	if h.Version != 2 && h.Version != 3 {
		return h, fmt.Errorf("%w: version %d", llamuxerr.ErrBadFormat, h.Version)
	}
	if err := rd.readBinary(&h.TensorCount); err != nil {
		return h, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
	}
	if err := rd.readBinary(&h.MetadataCount); err != nil {
		return h, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
	}
	return h, nil
}

func (rd *reader) readBinary(v any) error {
	n := binarySize(v)
	err := binary.Read(rd.r, binary.LittleEndian, v)
	if err == nil {
		rd.consumed += int64(n)
	}
	return err
}

func binarySize(v any) int {
	switch v.(type) {
	case *uint8, *int8, *bool:
		return 1
	case *uint16, *int16:
		return 2
	case *uint32, *int32, *float32:
		return 4
	case *uint64, *int64, *float64:
		return 8
	default:
		return 0
	}
}

func alignUp64(off uint64, alignment uint64) uint64 {
	if alignment == 0 {
		return off
	}
	return (off + alignment - 1) &^ (alignment - 1)
}
