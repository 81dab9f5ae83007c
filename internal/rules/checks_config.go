package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kcchien/clawpilot/internal/perms"
	"github.com/kcchien/clawpilot/internal/signature"
	"github.com/kcchien/clawpilot/internal/types"
)

// versionTuple is a YYYY.MINOR.PATCH release identifier.
type versionTuple [3]int

func (v versionTuple) less(o versionTuple) bool {
	for i := 0; i < 3; i++ {
		if v[i] != o[i] {
			return v[i] < o[i]
		}
	}
	return false
}

func (v versionTuple) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// fixedInVersions lists known security fixes: anything older than a
// threshold is exposed to the named issue.
var fixedInVersions = []struct {
	fixed    versionTuple
	advisory string
}{
	{versionTuple{2026, 1, 29}, "message routing sandbox escape"},
	{versionTuple{2025, 12, 14}, "credential disclosure in gateway logs"},
}

func parseVersion(s string) (versionTuple, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return versionTuple{}, false
	}
	var v versionTuple
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return versionTuple{}, false
		}
		v[i] = n
	}
	return v, true
}

func checkVersion(cc *CheckContext) []types.Finding {
	if !cc.Snapshot.HasConfig() {
		return []types.Finding{insufficient(types.CategoryVersion, "no configuration file found")}
	}
	raw, ok := cc.Snapshot.Field("version")
	if !ok {
		return []types.Finding{insufficient(types.CategoryVersion, "version field not present in configuration")}
	}
	v, ok := parseVersion(raw)
	if !ok {
		return []types.Finding{types.Warning(types.CategoryVersion,
			fmt.Sprintf("could not determine gateway version from %q, manual check required", raw))}
	}

	for _, fix := range fixedInVersions {
		if v.less(fix.fixed) {
			return []types.Finding{types.Critical(types.CategoryVersion,
				fmt.Sprintf("gateway version %s predates the fix for %s (fixed in %s)", v, fix.advisory, fix.fixed)).
				WithRemediation(fmt.Sprintf("upgrade the gateway to %s or later", fix.fixed))}
		}
	}
	return []types.Finding{types.Pass(types.CategoryVersion,
		fmt.Sprintf("gateway version %s has no known vulnerable releases behind it", v))}
}

func checkPermissions(cc *CheckContext) []types.Finding {
	root := cc.Snapshot.Root
	var findings []types.Finding

	configAudited := false
	for i := range cc.Policy {
		e := &cc.Policy[i]
		if strings.ContainsAny(e.Pattern, "*?[") {
			findings = append(findings, auditGlobEntry(root, e)...)
			continue
		}
		path := filepath.Join(root, e.Pattern)
		if e.Label == "gateway config" {
			// Only one of the recognized config spellings exists per
			// install; audit that one and skip the alternates.
			if cc.Snapshot.HasConfig() {
				if path != cc.Snapshot.ConfigPath {
					continue
				}
			} else if configAudited {
				continue
			}
			configAudited = true
		}
		findings = append(findings, perms.Audit(path, e.Mode, e.Label))
	}
	return findings
}

// auditGlobEntry audits every existing file under root matched by a glob
// policy entry. The enclosing directory has its own literal entry, so a
// missing tree produces no findings here.
func auditGlobEntry(root string, e *perms.PolicyEntry) []types.Finding {
	base := e.Pattern
	if i := strings.IndexAny(base, "*?["); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, "/")

	var findings []types.Finding
	filepath.WalkDir(filepath.Join(root, base), func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil || !e.Match(rel) {
			return nil
		}
		findings = append(findings, perms.Audit(path, e.Mode, e.Label))
		return nil
	})
	return findings
}

func checkCredentials(cc *CheckContext) []types.Finding {
	if !cc.Snapshot.HasConfig() {
		return []types.Finding{insufficient(types.CategoryCredential, "no configuration file found")}
	}

	var secretNames []string
	for _, name := range cc.Sigs.Scan([]byte(cc.Snapshot.Raw())) {
		if cc.Sigs.Family(name) == signature.FamilySecretExposure {
			secretNames = append(secretNames, name)
		}
	}
	if len(secretNames) == 0 {
		return []types.Finding{types.Pass(types.CategoryCredential,
			"no plaintext secrets detected in configuration")}
	}

	msg := fmt.Sprintf("configuration embeds plaintext secrets (%s)", strings.Join(secretNames, ", "))
	remediation := "move secrets into the credentials directory and reference them indirectly"

	// A secret in a config only the owner can read is bad hygiene; the
	// same secret in a group or world readable config is an exposure.
	if info, err := os.Stat(cc.Snapshot.ConfigPath); err == nil && info.Mode().Perm()&0o044 != 0 {
		return []types.Finding{types.Critical(types.CategoryCredential,
			msg + " and the file is readable by other users").
			WithPath(cc.Snapshot.ConfigPath).
			WithRemediation(remediation)}
	}
	return []types.Finding{types.Warning(types.CategoryCredential, msg).
		WithPath(cc.Snapshot.ConfigPath).
		WithRemediation(remediation)}
}

func checkLogRedaction(cc *CheckContext) []types.Finding {
	if !cc.Snapshot.HasConfig() {
		return []types.Finding{insufficient(types.CategoryLogging, "no configuration file found")}
	}
	v, ok := cc.Snapshot.Scoped("logging", "redactSecrets")
	if !ok {
		v, ok = cc.Snapshot.Field("redactSecrets")
	}
	if !ok {
		return []types.Finding{types.Info(types.CategoryLogging,
			"log redaction is not configured, the gateway default applies")}
	}
	enabled, known := boolValue(v)
	if !known {
		return []types.Finding{types.Warning(types.CategoryLogging,
			fmt.Sprintf("unrecognized redactSecrets value %q, manual check required", v))}
	}
	if !enabled {
		return []types.Finding{types.Warning(types.CategoryLogging,
			"secret redaction is disabled, credentials may be written to gateway logs").
			WithRemediation("set logging.redactSecrets to true")}
	}
	return []types.Finding{types.Pass(types.CategoryLogging, "log redaction is enabled")}
}
