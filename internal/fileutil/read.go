// Package fileutil provides read-side file helpers used by the scanners:
// bounded reads, transient-failure retry, and binary content detection.
// Nothing in this package ever writes to the inspected installation.
package fileutil

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"
)

// MaxReadBytes caps how much of any single file is read for scanning.
// Files larger than this are scanned up to the cap; signature matching
// on a truncated prefix is an accepted trade-off for bounded cost.
const MaxReadBytes = 4 << 20 // 4 MiB

// sniffLen is how many leading bytes are examined for binary detection.
const sniffLen = 8192

// ReadCapped reads up to MaxReadBytes from path, retrying once on a
// transient failure. A missing file is returned as-is (callers treat
// absence as a first-class INFO outcome, not an error to retry).
func ReadCapped(path string) ([]byte, error) {
	data, err := readCappedOnce(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return data, err
	}
	// One retry for transient I/O errors (NFS hiccup, rotation race).
	time.Sleep(50 * time.Millisecond)
	return readCappedOnce(path)
}

func readCappedOnce(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxReadBytes))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// IsBinary reports whether data looks like binary content: a NUL byte
// in the leading sniff window, or invalid UTF-8 density high enough that
// line-oriented signature matching would be meaningless.
func IsBinary(data []byte) bool {
	window := data
	if len(window) > sniffLen {
		window = window[:sniffLen]
	}
	if bytes.IndexByte(window, 0x00) >= 0 {
		return true
	}
	// Count bytes outside the printable/whitespace range.
	nonText := 0
	for _, b := range window {
		if b < 0x09 || (b > 0x0D && b < 0x20) {
			nonText++
		}
	}
	return len(window) > 0 && nonText*10 > len(window)
}

// Exists reports whether path exists (any file type).
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
