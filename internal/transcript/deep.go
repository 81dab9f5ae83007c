package transcript

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kcchien/clawpilot/internal/types"
)

// Deep-mode thresholds. These are advisory heuristics over transcript
// text, so every hit stays at INFO or WARNING.
const (
	ipDensityThreshold     = 25
	base64DensityThreshold = 40
	stalenessThreshold     = 90 * 24 * time.Hour
)

var (
	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

	// Long unbroken base64-ish runs. Short tokens are too common in
	// ordinary JSON to be worth counting.
	base64Pattern = regexp.MustCompile(`\b[A-Za-z0-9+/]{32,}={0,2}\b`)

	// Infrastructure paths that should not be leaking into agent
	// conversations. Distinct from the secret signatures: these flag
	// exposure of sensitive locations, not credential material itself.
	infraPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(/|\\)\.ssh(/|\\)`),
		regexp.MustCompile(`(?i)(/|\\)\.aws(/|\\)credentials`),
		regexp.MustCompile(`(?i)(/|\\)\.kube(/|\\)config`),
		regexp.MustCompile(`/etc/(passwd|shadow|sudoers)`),
		regexp.MustCompile(`/var/run/docker\.sock`),
		regexp.MustCompile(`(?i)(/|\\)\.docker(/|\\)config\.json`),
	}
)

// Deep runs the supplementary heuristics over one sampled transcript.
// now is passed in so staleness is testable.
func Deep(path string, data []byte, mtime, now time.Time) []types.Finding {
	var findings []types.Finding

	if n := len(ipv4Pattern.FindAll(data, ipDensityThreshold+1)); n > ipDensityThreshold {
		findings = append(findings, types.Warning(types.CategoryTranscript,
			fmt.Sprintf("transcript contains more than %d IP addresses, review for network reconnaissance", ipDensityThreshold)).
			WithPath(path))
	}

	if n := len(base64Pattern.FindAll(data, base64DensityThreshold+1)); n > base64DensityThreshold {
		findings = append(findings, types.Warning(types.CategoryTranscript,
			fmt.Sprintf("transcript contains more than %d long base64-like tokens, review for encoded payloads", base64DensityThreshold)).
			WithPath(path))
	}

	for _, re := range infraPathPatterns {
		if re.Match(data) {
			findings = append(findings, types.Warning(types.CategoryTranscript,
				"transcript references sensitive infrastructure paths").
				WithPath(path))
			break
		}
	}

	if age := now.Sub(mtime); age > stalenessThreshold {
		findings = append(findings, types.Info(types.CategoryTranscript,
			fmt.Sprintf("transcript is %d days old, consider pruning retained sessions", int(age.Hours()/24))).
			WithPath(path).
			WithRemediation("rotate or delete old session transcripts to limit retained sensitive context"))
	}

	return findings
}
