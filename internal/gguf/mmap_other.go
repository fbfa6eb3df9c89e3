//go:build !unix

package gguf

import "os"

// mmapFile falls back to a plain read on platforms without mmap support.
func mmapFile(f *os.File, size int) ([]byte, func() error, error) {
	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
