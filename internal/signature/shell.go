package signature

import (
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Synthetic signature names produced by shell AST analysis. All of them
// belong to the obfuscated-exec family: they describe constructs that
// defeat static line matching, not a specific payload.
const (
	ShellEvalDynamic   = "shell-eval-dynamic"    // eval/source fed by expansion
	ShellSubstNetwork  = "shell-subst-network"   // $(curl ...) command substitution
	ShellInterpDynamic = "shell-interp-dynamic"  // sh/python -c "$var"
	ShellDecodeAssign  = "shell-decode-assigned" // var=$(base64 -d ...) then used
)

// shellFamily maps the synthetic names onto the family taxonomy so the
// registry can classify them alongside pattern matches.
var shellFamily = map[string]string{
	ShellEvalDynamic:   FamilyObfuscatedExec,
	ShellSubstNetwork:  FamilyObfuscatedExec,
	ShellInterpDynamic: FamilyObfuscatedExec,
	ShellDecodeAssign:  FamilyObfuscatedExec,
}

var shellInterpreters = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true,
	"python": true, "python3": true, "perl": true, "node": true,
}

var networkFetchers = map[string]bool{
	"curl": true, "wget": true, "nc": true, "ncat": true,
}

var decodeCommands = map[string]bool{
	"base64": true, "xxd": true, "openssl": true,
}

// AnalyzeShell parses src as Bash and walks the AST for execution
// constructs that static pattern matching cannot see through. It returns
// the synthetic names that fired and whether the source parsed at all;
// callers report an unparseable script themselves (it may simply not be
// shell). The source is only ever parsed, never executed.
func AnalyzeShell(src string) (names []string, parsed bool) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(src), "")
	if err != nil {
		return nil, false
	}

	hits := map[string]bool{}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.CallExpr:
			inspectCall(n, hits)
		case *syntax.Assign:
			if n.Value != nil && substCommandIn(n.Value, decodeCommands) {
				hits[ShellDecodeAssign] = true
			}
		case *syntax.CmdSubst:
			if callsAny(n.Stmts, networkFetchers) {
				hits[ShellSubstNetwork] = true
			}
		}
		return true
	})

	for name := range hits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, true
}

func inspectCall(call *syntax.CallExpr, hits map[string]bool) {
	if len(call.Args) == 0 {
		return
	}
	name := literalPrefix(call.Args[0])
	base := name
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}

	switch {
	case base == "eval" || base == "source" || base == ".":
		for _, w := range call.Args[1:] {
			if wordHasExpansion(w) {
				hits[ShellEvalDynamic] = true
				return
			}
		}
	case shellInterpreters[base]:
		// interpreter -c with a dynamic argument
		for i, w := range call.Args[1:] {
			if literalPrefix(w) == "-c" && i+2 < len(call.Args) && wordHasExpansion(call.Args[i+2]) {
				hits[ShellInterpDynamic] = true
				return
			}
		}
	}
}

// literalPrefix returns the literal text of a word up to its first
// expansion; enough to identify a command name.
func literalPrefix(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		default:
			return sb.String()
		}
	}
	return sb.String()
}

// wordHasExpansion reports whether a word contains command substitution,
// process substitution, or parameter expansion.
func wordHasExpansion(w *syntax.Word) bool {
	if w == nil {
		return false
	}
	found := false
	syntax.Walk(w, func(node syntax.Node) bool {
		switch node.(type) {
		case *syntax.CmdSubst, *syntax.ProcSubst, *syntax.ParamExp:
			found = true
			return false
		}
		return true
	})
	return found
}

// substCommandIn reports whether a word contains a command substitution
// invoking one of the named commands.
func substCommandIn(w *syntax.Word, commands map[string]bool) bool {
	if w == nil {
		return false
	}
	found := false
	syntax.Walk(w, func(node syntax.Node) bool {
		if cs, ok := node.(*syntax.CmdSubst); ok {
			if callsAny(cs.Stmts, commands) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// callsAny reports whether any statement (including pipeline segments
// and nested constructs) invokes one of the named commands.
func callsAny(stmts []*syntax.Stmt, commands map[string]bool) bool {
	found := false
	for _, st := range stmts {
		syntax.Walk(st, func(node syntax.Node) bool {
			call, ok := node.(*syntax.CallExpr)
			if !ok || len(call.Args) == 0 {
				return true
			}
			base := literalPrefix(call.Args[0])
			if idx := strings.LastIndex(base, "/"); idx >= 0 {
				base = base[idx+1:]
			}
			if commands[base] {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}
