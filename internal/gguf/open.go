package gguf

import (
	"bytes"
	"fmt"
	"os"
)

// Open reads and decodes the GGUF file at path, returning the decoded
// header/metadata/tensor-directory plus the raw file bytes (memory-mapped
// read-only where supported) so the caller can subsequently call
// LoadTensorData against them.
func Open(path string) (*File, []byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, nil, err
	}

	data, closer, err := mmapFile(f, int(info.Size()))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	gf, err := Decode(bytes.NewReader(data))
	if err != nil {
		closer()
		return nil, nil, nil, err
	}

	return gf, data, closer, nil
}
