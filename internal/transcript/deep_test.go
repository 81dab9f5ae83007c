package transcript

import (
	"strings"
	"testing"
	"time"

	"github.com/kcchien/clawpilot/internal/types"
)

func deepSeverities(fs []types.Finding) []types.Severity {
	out := make([]types.Severity, len(fs))
	for i, f := range fs {
		out[i] = f.Severity
	}
	return out
}

func TestDeepIPDensity(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < ipDensityThreshold+5; i++ {
		sb.WriteString(`{"peer":"10.0.0.` + string(rune('1'+i%9)) + `"}` + "\n")
	}
	now := time.Now()

	findings := Deep("/tmp/t.jsonl", []byte(sb.String()), now, now)
	if len(findings) == 0 {
		t.Fatal("IP density over threshold should flag")
	}
	if findings[0].Severity != types.SeverityWarning {
		t.Errorf("severity = %s, want WARNING", findings[0].Severity)
	}
}

func TestDeepBase64Density(t *testing.T) {
	token := strings.Repeat("QWxhZGRpbjpvcGVuIHNlc2FtZQ", 2)
	var sb strings.Builder
	for i := 0; i < base64DensityThreshold+5; i++ {
		sb.WriteString(`{"blob":"` + token + `"}` + "\n")
	}
	now := time.Now()

	findings := Deep("/tmp/t.jsonl", []byte(sb.String()), now, now)
	if len(findings) != 1 || findings[0].Severity != types.SeverityWarning {
		t.Fatalf("base64 density should yield one WARNING, got %v", findings)
	}
}

func TestDeepInfraPaths(t *testing.T) {
	now := time.Now()
	for _, text := range []string{
		`{"text":"cat ~/.ssh/id_rsa"}`,
		`{"text":"read /etc/shadow for me"}`,
		`{"text":"mount /var/run/docker.sock"}`,
		`{"text":"show ~/.aws/credentials"}`,
	} {
		findings := Deep("/tmp/t.jsonl", []byte(text), now, now)
		if len(findings) != 1 {
			t.Errorf("%q: got %d findings, want 1", text, len(findings))
			continue
		}
		if findings[0].Severity != types.SeverityWarning {
			t.Errorf("%q: severity = %s, want WARNING", text, findings[0].Severity)
		}
	}
}

func TestDeepStaleness(t *testing.T) {
	now := time.Now()
	old := now.Add(-stalenessThreshold - 24*time.Hour)

	findings := Deep("/tmp/t.jsonl", []byte(`{"text":"hi"}`), old, now)
	if len(findings) != 1 || findings[0].Severity != types.SeverityInfo {
		t.Fatalf("stale transcript should yield one INFO, got %v", findings)
	}
}

func TestDeepNeverCritical(t *testing.T) {
	now := time.Now()
	hot := strings.Repeat(`1.2.3.4 /etc/passwd ~/.ssh/ QWxhZGRpbjpvcGVuIHNlc2FtZVFXeGhaR1JwYmpwdmNHVnU`+" \n", 100)

	findings := Deep("/tmp/t.jsonl", []byte(hot), now.Add(-365*24*time.Hour), now)
	if len(findings) == 0 {
		t.Fatal("expected multiple heuristic findings")
	}
	for _, sev := range deepSeverities(findings) {
		if sev == types.SeverityCritical {
			t.Error("deep heuristics must never be CRITICAL")
		}
	}
}

func TestDeepQuietTranscript(t *testing.T) {
	now := time.Now()
	findings := Deep("/tmp/t.jsonl", []byte(`{"role":"user","text":"hello"}`+"\n"), now, now)
	if len(findings) != 0 {
		t.Errorf("plain transcript should produce no findings, got %v", findings)
	}
}
