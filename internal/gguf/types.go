// Package gguf implements the binary model-file parser (spec component D):
// it maps the packed GGUF header/metadata/tensor-info/tensor-data layout
// into a KV dictionary and an ordered tensor directory, without
// interpreting anything beyond what this names.
package gguf

import "github.com/BurgessTheGamer/Llamux/internal/tensor"

// Magic is the little-endian magic number every GGUF file begins with
// ("GGUF" read as a u32).
const Magic uint32 = 0x46554747

// ValueType enumerates the wire types a metadata value may carry.
type ValueType uint32

const (
	TypeUint8 ValueType = iota
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeFloat32
	TypeBool
	TypeString
	TypeArray
	TypeUint64
	TypeInt64
	TypeFloat64
)

// Header is the fixed 24-byte prefix of a GGUF file.
type Header struct {
	Magic         uint32
	Version       uint32
	TensorCount   uint64
	MetadataCount uint64
}

// Array holds a GGUF array value: the element type and its decoded
// elements. Decode keeps the elements of every array it reads, whether or
// not any caller interprets the key.
type Array struct {
	ElemType ValueType
	Values   []any
}

// TensorInfo is one record from the tensor-info directory: the
// {name, n_dims, shape, dtype, offset}.
type TensorInfo struct {
	Name       string
	Shape      []uint64
	DType      tensor.DType
	RawDType   uint32
	DataOffset uint64

	// Data is populated by LoadTensorData once the tensor-data region has
	// been copied into a destination buffer.
	Data []byte
}

// ggufDTypeToTensor maps the wire dtype codes of this onto the in-memory
// DType enum. Only f32, f16, q4_K and i32 are required; q5_K/q6_K/q8_K are
// recognized (so the directory and assembler can name them) but any attempt
// to dequantize one is rejected explicitly by package quant. Any other code
// is unrecognized and must be rejected by the caller rather than silently
// defaulted.
func ggufDTypeToTensor(raw uint32) (tensor.DType, bool) {
	switch raw {
	case 0:
		return tensor.F32, true
	case 1:
		return tensor.F16, true
	case 12:
		return tensor.Q4K, true
	case 13:
		return tensor.Q5K, true
	case 14:
		return tensor.Q6K, true
	case 15:
		return tensor.Q8K, true
	case 16:
		return tensor.I32, true
	default:
		return 0, false
	}
}
