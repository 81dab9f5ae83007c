// Package perms compares on-disk permission bits of sensitive paths
// against an expected policy table and classifies deviations.
package perms

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/gobwas/glob"
	"github.com/kcchien/clawpilot/internal/types"
)

// PolicyEntry maps a path pattern to the permission bits it should carry.
// The table is static once built; nothing mutates it at runtime. Entries
// are constructed in code or via config.PolicyRule, never decoded
// directly: Mode is a parsed fs.FileMode, not the octal string users
// write.
type PolicyEntry struct {
	Pattern string
	Mode    fs.FileMode
	Label   string

	compiled glob.Glob
}

// Match reports whether path matches this entry's pattern.
func (e *PolicyEntry) Match(path string) bool {
	if e.compiled == nil {
		return false
	}
	return e.compiled.Match(path)
}

// CompilePolicy compiles the glob patterns in a policy table.
// Invalid patterns are rejected up front so evaluation never fails.
func CompilePolicy(entries []PolicyEntry) ([]PolicyEntry, error) {
	out := make([]PolicyEntry, len(entries))
	for i, e := range entries {
		g, err := glob.Compile(e.Pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("policy pattern %q: %w", e.Pattern, err)
		}
		e.compiled = g
		out[i] = e
	}
	return out, nil
}

// DefaultPolicy is the shipped expectation table for a gateway install.
// Paths are relative to the installation root.
func DefaultPolicy() []PolicyEntry {
	return []PolicyEntry{
		{Pattern: "openclaw.json", Mode: 0o600, Label: "gateway config"},
		{Pattern: "openclaw.json5", Mode: 0o600, Label: "gateway config"},
		{Pattern: "config.json", Mode: 0o600, Label: "gateway config"},
		{Pattern: "credentials", Mode: 0o700, Label: "credential directory"},
		{Pattern: "credentials/**", Mode: 0o600, Label: "credential file"},
		{Pattern: "auth.token", Mode: 0o600, Label: "auth token"},
		{Pattern: "agents", Mode: 0o700, Label: "agent state"},
	}
}

// Audit classifies path's permission bits against the expected mode.
//
// Classification is monotonic in looseness: any world-accessible excess
// is CRITICAL, group-only excess is WARNING, and a path that is tighter
// than (or equal to) the expectation is PASS. A missing path is INFO:
// absence is reported, never silently skipped.
func Audit(path string, want fs.FileMode, label string) types.Finding {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Info(types.CategoryFilesystem,
				fmt.Sprintf("%s: path does not exist", label)).WithPath(path)
		}
		return types.Warning(types.CategoryFilesystem,
			fmt.Sprintf("%s: cannot stat: %v", label, err)).WithPath(path)
	}

	got := info.Mode().Perm()
	excess := got &^ want.Perm()

	switch {
	case excess == 0:
		return types.Pass(types.CategoryFilesystem,
			fmt.Sprintf("%s has mode %04o", label, got)).WithPath(path)
	case excess&0o007 != 0:
		return types.Critical(types.CategoryFilesystem,
			fmt.Sprintf("%s is world-accessible: mode %04o, expected %04o", label, got, want.Perm())).
			WithPath(path).
			WithRemediation(fmt.Sprintf("chmod %o %s", want.Perm(), path))
	default:
		return types.Warning(types.CategoryFilesystem,
			fmt.Sprintf("%s is group-accessible: mode %04o, expected %04o", label, got, want.Perm())).
			WithPath(path).
			WithRemediation(fmt.Sprintf("chmod %o %s", want.Perm(), path))
	}
}
