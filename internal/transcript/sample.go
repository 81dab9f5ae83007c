// Package transcript selects a bounded, deterministic subset of session
// log files for scanning. Transcript corpora grow without bound, so the
// sampler trades completeness for predictable cost and reports how much
// of the corpus it covered.
package transcript

import (
	"bytes"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kcchien/clawpilot/internal/fileutil"
)

// DefaultMax is the sample cap used when the caller does not override it.
const DefaultMax = 20

const maxDecompressedBytes = 16 << 20

// SampleSet is the result of one sampling pass: the chosen paths in scan
// order plus the total candidate count, so reports can state coverage.
type SampleSet struct {
	Paths []string
	Total int
}

type candidate struct {
	path  string
	mtime time.Time
}

// Sample walks dir recursively and returns the max most-recently-modified
// transcript files. Modification-time ties break on lexical path order so
// two runs over an unchanged tree produce identical lists. A missing or
// unreadable directory yields an empty set, not an error: the caller turns
// that into its own observation.
func Sample(dir string, max int) SampleSet {
	if max <= 0 {
		max = DefaultMax
	}

	var cands []candidate
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable subtrees, keep walking
		}
		if d.IsDir() || !isTranscript(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		cands = append(cands, candidate{path: path, mtime: info.ModTime()})
		return nil
	})

	sort.Slice(cands, func(i, j int) bool {
		if !cands[i].mtime.Equal(cands[j].mtime) {
			return cands[i].mtime.After(cands[j].mtime)
		}
		return cands[i].path < cands[j].path
	})

	set := SampleSet{Total: len(cands)}
	for i, c := range cands {
		if i >= max {
			break
		}
		set.Paths = append(set.Paths, c.path)
	}
	return set
}

func isTranscript(path string) bool {
	return strings.HasSuffix(path, ".jsonl") || strings.HasSuffix(path, ".jsonl.zst")
}

// Load reads a sampled transcript, transparently decompressing *.zst.
// The second return reports whether the content is scannable text.
func Load(path string) (data []byte, ok bool, err error) {
	data, err = fileutil.ReadCapped(path)
	if err != nil {
		return nil, false, err
	}
	if strings.HasSuffix(path, ".zst") {
		dec, derr := zstd.NewReader(bytes.NewReader(data))
		if derr != nil {
			return nil, false, nil
		}
		defer dec.Close()
		decoded, derr := io.ReadAll(io.LimitReader(dec.IOReadCloser(), maxDecompressedBytes))
		if derr != nil {
			return nil, false, nil
		}
		data = decoded
	}
	if fileutil.IsBinary(data) {
		return data, false, nil
	}
	return data, true, nil
}
