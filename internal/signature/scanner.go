package signature

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/kcchien/clawpilot/internal/fileutil"
)

// maxDecompressedBytes caps zstd output so a crafted archive cannot
// balloon the scan. Mirrors fileutil.MaxReadBytes on the plain-text path.
const maxDecompressedBytes = 16 << 20

// FileResult is the outcome of scanning one file.
type FileResult struct {
	Path    string
	Matches []string // matched signature names, sorted
	Skipped bool     // binary or undecodable content, not scanned
	Err     error    // read failure after retry
}

// ScanFile reads path (transparently decompressing *.zst) and matches it
// against the registry. Binary and unreadable content is a skip, never a
// failure: the scanner is a static read with no side effects.
func (r *Registry) ScanFile(path string) FileResult {
	res := FileResult{Path: path}

	data, err := fileutil.ReadCapped(path)
	if err != nil {
		res.Err = err
		return res
	}

	if strings.HasSuffix(path, ".zst") {
		decoded, err := decompressZstd(data)
		if err != nil {
			// Truncated or corrupt frame: skip rather than guess.
			res.Skipped = true
			return res
		}
		data = decoded
	}

	if fileutil.IsBinary(data) {
		res.Skipped = true
		return res
	}

	res.Matches = r.Scan(data)
	return res
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(io.LimitReader(dec.IOReadCloser(), maxDecompressedBytes))
}
