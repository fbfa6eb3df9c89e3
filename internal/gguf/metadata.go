package gguf

import (
	"fmt"
	"io"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

// readString reads a gguf_string: a u64 length followed by that many raw
// bytes (not NUL-terminated).
func (rd *reader) readString() (string, error) {
	var length uint64
	if err := rd.readBinary(&length); err != nil {
		return "", fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
	}

	var buf []byte
	if length <= uint64(len(rd.scratch)) {
		buf = rd.scratch[:length]
	} else {
		buf = make([]byte, length)
	}
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
	}
	rd.consumed += int64(length)
	return string(buf), nil
}

// readValue decodes one metadata value of the given wire type, recursing
// for arrays so that every array-of-strings (or nested array) is sized
// correctly even when the caller never inspects its contents.
func (rd *reader) readValue(t ValueType) (any, error) {
	switch t {
	case TypeUint8:
		var v uint8
		return v, rd.readBinary(&v)
	case TypeInt8:
		var v int8
		return v, rd.readBinary(&v)
	case TypeUint16:
		var v uint16
		return v, rd.readBinary(&v)
	case TypeInt16:
		var v int16
		return v, rd.readBinary(&v)
	case TypeUint32:
		var v uint32
		return v, rd.readBinary(&v)
	case TypeInt32:
		var v int32
		return v, rd.readBinary(&v)
	case TypeFloat32:
		var v float32
		return v, rd.readBinary(&v)
	case TypeBool:
		var v bool
		return v, rd.readBinary(&v)
	case TypeUint64:
		var v uint64
		return v, rd.readBinary(&v)
	case TypeInt64:
		var v int64
		return v, rd.readBinary(&v)
	case TypeFloat64:
		var v float64
		return v, rd.readBinary(&v)
	case TypeString:
		return rd.readString()
	case TypeArray:
		return rd.readArray()
	default:
		return nil, fmt.Errorf("%w: metadata value type %d", llamuxerr.ErrBadFormat, t)
	}
}

// readArray reads a GGUF array value: elem_type u32, length u64, then
// length elements of that type, recursively (arrays of arrays are legal on
// the wire even though no model in practice emits them).
func (rd *reader) readArray() (*Array, error) {
	var elemType uint32
	if err := rd.readBinary(&elemType); err != nil {
		return nil, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
	}

	var length uint64
	if err := rd.readBinary(&length); err != nil {
		return nil, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
	}

	arr := &Array{ElemType: ValueType(elemType), Values: make([]any, 0, length)}
	for i := uint64(0); i < length; i++ {
		v, err := rd.readValue(ValueType(elemType))
		if err != nil {
			return nil, err
		}
		arr.Values = append(arr.Values, v)
	}
	return arr, nil
}

// parseMetadataInto decodes MetadataCount key/value records into kv. Every
// key is stored, regardless of whether the assembler later interprets it —
// "skipped correctly" falls naturally out of readValue always
// fully consuming its value's bytes, arrays included.
func parseMetadataInto(rd *reader, hdr Header, kv KV) error {
	for i := uint64(0); i < hdr.MetadataCount; i++ {
		key, err := rd.readString()
		if err != nil {
			return err
		}

		var rawType uint32
		if err := rd.readBinary(&rawType); err != nil {
			return fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
		}

		v, err := rd.readValue(ValueType(rawType))
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		kv[key] = v
	}
	return nil
}

// parseTensorDirectory decodes TensorCount tensor-info records: name,
// n_dims, shape[n_dims], dtype, offset. A dtype code this build doesn't
// recognize is rejected outright rather than silently coerced to f32.
func parseTensorDirectory(rd *reader, hdr Header) ([]*TensorInfo, error) {
	infos := make([]*TensorInfo, 0, hdr.TensorCount)
	for i := uint64(0); i < hdr.TensorCount; i++ {
		name, err := rd.readString()
		if err != nil {
			return nil, err
		}

		var nDims uint32
		if err := rd.readBinary(&nDims); err != nil {
			return nil, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
		}
		if nDims > 4 {
			return nil, fmt.Errorf("%w: tensor %q has %d dims", llamuxerr.ErrBadFormat, name, nDims)
		}

		shape := make([]uint64, nDims)
		for d := range shape {
			if err := rd.readBinary(&shape[d]); err != nil {
				return nil, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
			}
		}

		var rawDType uint32
		if err := rd.readBinary(&rawDType); err != nil {
			return nil, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
		}

		var offset uint64
		if err := rd.readBinary(&offset); err != nil {
			return nil, fmt.Errorf("%w: %v", llamuxerr.ErrTruncated, err)
		}

		dtype, ok := ggufDTypeToTensor(rawDType)
		if !ok {
			return nil, fmt.Errorf("%w: tensor %q has unrecognized dtype code %d", llamuxerr.ErrUnsupported, name, rawDType)
		}

		infos = append(infos, &TensorInfo{
			Name:       name,
			Shape:      shape,
			DType:      dtype,
			RawDType:   rawDType,
			DataOffset: offset,
		})
	}
	return infos, nil
}
