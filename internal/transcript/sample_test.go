package transcript

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func writeTranscript(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"role":"user","text":"hi"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSampleOrdersByMtimeDescending(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	old := writeTranscript(t, dir, "a/old.jsonl", base)
	mid := writeTranscript(t, dir, "b/mid.jsonl", base.Add(10*time.Minute))
	newest := writeTranscript(t, dir, "c/new.jsonl", base.Add(20*time.Minute))

	set := Sample(dir, 10)
	if set.Total != 3 {
		t.Fatalf("Total = %d, want 3", set.Total)
	}
	want := []string{newest, mid, old}
	if len(set.Paths) != 3 {
		t.Fatalf("got %d paths, want 3", len(set.Paths))
	}
	for i := range want {
		if set.Paths[i] != want[i] {
			t.Errorf("Paths[%d] = %s, want %s", i, set.Paths[i], want[i])
		}
	}
}

func TestSampleCapAndTotal(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		writeTranscript(t, dir, filepath.Join("s", "t"+string(rune('a'+i))+".jsonl"), base.Add(time.Duration(i)*time.Minute))
	}

	set := Sample(dir, 2)
	if set.Total != 5 {
		t.Errorf("Total = %d, want 5", set.Total)
	}
	if len(set.Paths) != 2 {
		t.Errorf("got %d paths, want cap of 2", len(set.Paths))
	}
}

func TestSampleLexicalTiebreak(t *testing.T) {
	dir := t.TempDir()
	same := time.Now().Add(-time.Hour).Truncate(time.Second)
	b := writeTranscript(t, dir, "bbb.jsonl", same)
	a := writeTranscript(t, dir, "aaa.jsonl", same)

	set := Sample(dir, 10)
	if len(set.Paths) != 2 || set.Paths[0] != a || set.Paths[1] != b {
		t.Errorf("tie not broken lexically: %v", set.Paths)
	}
}

func TestSampleDeterministic(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		writeTranscript(t, dir, filepath.Join("agents", "x", "sessions", "s"+string(rune('a'+i))+".jsonl"), base.Add(time.Duration(i%3)*time.Minute))
	}

	first := Sample(dir, 4)
	for i := 0; i < 10; i++ {
		again := Sample(dir, 4)
		if len(again.Paths) != len(first.Paths) {
			t.Fatalf("run %d: length changed", i)
		}
		for j := range first.Paths {
			if again.Paths[j] != first.Paths[j] {
				t.Fatalf("run %d: order changed at %d: %s vs %s", i, j, again.Paths[j], first.Paths[j])
			}
		}
	}
}

func TestSampleIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "keep.jsonl", time.Now())
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	set := Sample(dir, 10)
	if set.Total != 1 || len(set.Paths) != 1 {
		t.Errorf("non-transcript files counted: %+v", set)
	}
}

func TestSampleMissingDir(t *testing.T) {
	set := Sample(filepath.Join(t.TempDir(), "absent"), 10)
	if set.Total != 0 || len(set.Paths) != 0 {
		t.Errorf("missing directory should yield empty set, got %+v", set)
	}
}

func TestLoadCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl.zst")

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte(`{"text":"hello world"}` + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	data, ok, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("compressed transcript should be scannable")
	}
	if !bytes.Contains(data, []byte("hello world")) {
		t.Errorf("decompressed content missing: %q", data)
	}
}

func TestLoadCorruptCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl.zst")
	if err := os.WriteFile(path, []byte("not a zstd frame"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, ok, err := Load(path)
	if err != nil {
		t.Fatalf("corrupt frame should not be an error: %v", err)
	}
	if ok {
		t.Error("corrupt frame should not be scannable")
	}
}
