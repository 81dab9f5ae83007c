// Package signature screens text for a narrow set of named patterns
// grouped into intent families. Severity is a property of the family
// (what a match means), never of how many patterns fired.
package signature

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kcchien/clawpilot/internal/logger"
	"github.com/kcchien/clawpilot/internal/types"
)

var log = logger.New("signature")

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Pattern families.
const (
	FamilyReverseShell   = "reverse-shell"
	FamilyExfiltration   = "exfiltration"
	FamilyObfuscatedExec = "obfuscated-exec"
	FamilyCredTheft      = "credential-theft"
	FamilySecretExposure = "secret-exposure"
)

// FamilySeverity maps a family to the severity any match in it carries.
func FamilySeverity(family string) types.Severity {
	switch family {
	case FamilyReverseShell, FamilyExfiltration, FamilyObfuscatedExec:
		return types.SeverityCritical
	case FamilyCredTheft, FamilySecretExposure:
		return types.SeverityWarning
	default:
		return types.SeverityInfo
	}
}

// Signature is one named pattern within a family.
type Signature struct {
	Name    string `yaml:"name"`
	Family  string `yaml:"family"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// Registry is an immutable, compiled signature set. It is built once at
// process start and injected into the components that scan with it.
type Registry struct {
	sigs   []Signature
	family map[string]string
}

type signatureFile struct {
	Signatures []Signature `yaml:"signatures"`
}

// LoadBuiltin loads and compiles the embedded signature registry.
func LoadBuiltin() (*Registry, error) {
	var all []Signature

	err := fs.WalkDir(builtinFS, "builtin", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".yaml") {
			return nil
		}
		data, err := builtinFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var file signatureFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		all = append(all, file.Signatures...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	reg, err := NewRegistry(all)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded %d builtin signatures in %d families", len(reg.sigs), reg.FamilyCount())
	return reg, nil
}

// NewRegistry compiles a signature list into a registry.
// Every pattern is validated here so scanning never sees an invalid one.
func NewRegistry(sigs []Signature) (*Registry, error) {
	reg := &Registry{family: make(map[string]string, len(sigs))}
	for _, s := range sigs {
		if s.Name == "" || s.Family == "" {
			return nil, fmt.Errorf("signature missing name or family: %+v", s)
		}
		re, err := regexp.Compile("(?i)" + s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("signature %s: %w", s.Name, err)
		}
		s.re = re
		reg.sigs = append(reg.sigs, s)
		reg.family[s.Name] = s.Family
	}
	return reg, nil
}

// Scan matches data against every registered pattern and returns the
// sorted names of all signatures that fired. A file may match zero, one,
// or many signatures across families.
func (r *Registry) Scan(data []byte) []string {
	var hits []string
	for i := range r.sigs {
		if r.sigs[i].re.Match(data) {
			hits = append(hits, r.sigs[i].Name)
		}
	}
	sort.Strings(hits)
	return hits
}

// Family returns the family a signature name belongs to, or "" if the
// name is unknown (synthetic names from deep analysis resolve here too).
func (r *Registry) Family(name string) string {
	if f, ok := r.family[name]; ok {
		return f
	}
	return shellFamily[name]
}

// Families collapses matched signature names into their distinct
// families, sorted.
func (r *Registry) Families(names []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		f := r.Family(n)
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// WorstSeverity returns the highest family severity among matched names,
// or PASS when nothing matched.
func (r *Registry) WorstSeverity(names []string) types.Severity {
	worst := types.SeverityPass
	for _, f := range r.Families(names) {
		if s := FamilySeverity(f); s.WorseThan(worst) {
			worst = s
		}
	}
	return worst
}

// FamilyCount returns the number of distinct families registered.
func (r *Registry) FamilyCount() int {
	seen := map[string]bool{}
	for _, s := range r.sigs {
		seen[s.Family] = true
	}
	return len(seen)
}

// Len returns the number of registered signatures.
func (r *Registry) Len() int {
	return len(r.sigs)
}
