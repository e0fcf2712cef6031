//go:build !unix

package mmap

import "os"

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	return nil, nil, ErrUnsupported
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return nil, nil, ErrUnsupported
}

func osProtectRead(data []byte) error {
	return ErrUnsupported
}

func osAdvise(data []byte, pattern AccessPattern) error {
	return nil
}
