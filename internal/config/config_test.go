package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kcchien/clawpilot/internal/transcript"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.MaxTranscripts != transcript.DefaultMax {
		t.Errorf("MaxTranscripts = %d, want default %d", cfg.Scan.MaxTranscripts, transcript.DefaultMax)
	}
	if cfg.Output.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Output.LogLevel)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
root: /srv/openclaw
scan:
  max_transcripts: 50
  deep: true
output:
  log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "/srv/openclaw" || cfg.Scan.MaxTranscripts != 50 || !cfg.Scan.Deep {
		t.Errorf("loaded config wrong: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestLoadUnknownFieldsAreLenient(t *testing.T) {
	path := writeConfig(t, `
root: /srv/openclaw
scann:
  deep: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unknown fields should downgrade to a warning: %v", err)
	}
	if cfg.Root != "/srv/openclaw" {
		t.Errorf("known fields should survive the lenient re-parse: %+v", cfg)
	}
	if cfg.Scan.Deep {
		t.Error("misspelled section must not apply")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "root: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml should be an error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLAWPILOT_ROOT", "/opt/claw")
	t.Setenv("CLAWPILOT_SCAN_MAX_TRANSCRIPTS", "7")
	t.Setenv("CLAWPILOT_SCAN_DEEP", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "/opt/claw" {
		t.Errorf("Root = %q, want env override", cfg.Root)
	}
	if cfg.Scan.MaxTranscripts != 7 || !cfg.Scan.Deep {
		t.Errorf("scan overrides not applied: %+v", cfg.Scan)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.MaxTranscripts = -1
	cfg.Output.LogLevel = "loud"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	if !strings.Contains(err.Error(), "MaxTranscripts") || !strings.Contains(err.Error(), "LogLevel") {
		t.Errorf("error should name both offending fields:\n%v", err)
	}
}

func TestPolicyTableDefault(t *testing.T) {
	entries, err := DefaultConfig().PolicyTable()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("default policy table is empty")
	}
}

func TestPolicyTableOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = []PolicyRule{
		{Pattern: "vault/**", Mode: "0600", Label: "vault file"},
		{Pattern: "vault", Mode: "0700"},
	}
	entries, err := cfg.PolicyTable()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Mode != 0o600 || entries[1].Mode != 0o700 {
		t.Errorf("modes not parsed: %+v", entries)
	}
	if entries[1].Label != "vault" {
		t.Errorf("empty label should fall back to the pattern, got %q", entries[1].Label)
	}
	if !entries[0].Match("vault/telegram.json") {
		t.Error("override globs should compile and match")
	}
}

func TestValidateRejectsBadPolicyMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = []PolicyRule{{Pattern: "x", Mode: "rwxr"}}
	if err := cfg.Validate(); err == nil {
		t.Error("non-octal mode accepted")
	}
}
