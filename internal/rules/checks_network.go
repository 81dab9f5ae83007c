package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kcchien/clawpilot/internal/types"
)

var loopbackBinds = map[string]bool{
	"loopback": true, "localhost": true, "127.0.0.1": true, "::1": true, "[::1]": true,
}

// bindMode resolves the gateway bind setting, preferring the scoped form.
func bindMode(cc *CheckContext) (string, bool) {
	if v, ok := cc.Snapshot.Scoped("gateway", "bind"); ok {
		return strings.ToLower(v), true
	}
	if v, ok := cc.Snapshot.Field("bind"); ok {
		return strings.ToLower(v), true
	}
	return "", false
}

// authMode resolves the configured authentication mode. The second
// return reports whether any authentication is active.
func authMode(cc *CheckContext) (string, bool) {
	v, ok := cc.Snapshot.Scoped("auth", "mode")
	if !ok {
		v, ok = cc.Snapshot.Field("authMode")
	}
	if !ok {
		return "", false
	}
	v = strings.ToLower(v)
	return v, v != "none" && v != "off" && v != "disabled" && v != ""
}

func checkNetworkBinding(cc *CheckContext) []types.Finding {
	if !cc.Snapshot.HasConfig() {
		return []types.Finding{insufficient(types.CategoryNetwork, "no configuration file found")}
	}
	bind, ok := bindMode(cc)
	if !ok {
		return []types.Finding{types.Info(types.CategoryNetwork,
			"bind mode is not configured, the gateway defaults to loopback")}
	}

	var findings []types.Finding
	_, authed := authMode(cc)

	switch {
	case loopbackBinds[bind]:
		return []types.Finding{types.Pass(types.CategoryNetwork,
			"gateway binds to loopback only")}
	case bind == "lan":
		findings = append(findings, types.Warning(types.CategoryNetwork,
			"gateway binds to the local network, confirm the segment is firewalled and trusted").
			WithRemediation("prefer bind: loopback with a reverse proxy or tunnel for remote access"))
	default:
		findings = append(findings, types.Critical(types.CategoryNetwork,
			fmt.Sprintf("gateway binds to %q, reachable beyond this machine", bind)).
			WithRemediation("set gateway.bind to loopback unless wide exposure is deliberate"))
	}

	if !authed {
		findings = append(findings, types.Critical(types.CategoryNetwork,
			"gateway is network reachable with no authentication mode configured").
			WithRemediation("configure auth.mode (token or pairing) before exposing the gateway"))
	}
	return findings
}

// allowFromPattern captures the value bound to allowFrom: a bracketed
// list, which may span lines, or a single scalar.
var allowFromPattern = regexp.MustCompile(`(?is)["']?allowFrom["']?\s*[:=]\s*(\[[^\]]*\]|[^\s,}\]]+)`)

// allowListHasWildcard reports whether any allowFrom entry is the
// wildcard, wherever it sits in the list. A wildcard grants every
// sender access, so it overrides whatever the named policy claims.
func allowListHasWildcard(raw string) bool {
	m := allowFromPattern.FindStringSubmatch(raw)
	if m == nil {
		return false
	}
	for _, elem := range strings.Split(strings.Trim(m[1], "[]"), ",") {
		if strings.Trim(strings.TrimSpace(elem), `"'`) == "*" {
			return true
		}
	}
	return false
}

func checkDMPolicy(cc *CheckContext) []types.Finding {
	if !cc.Snapshot.HasConfig() {
		return []types.Finding{insufficient(types.CategoryAccess, "no configuration file found")}
	}

	var findings []types.Finding
	if allowListHasWildcard(cc.Snapshot.Raw()) {
		findings = append(findings, types.Critical(types.CategoryAccess,
			"allowFrom contains a wildcard entry, every sender is trusted").
			WithRemediation("enumerate trusted sender identities instead of *"))
	}

	policy, ok := cc.Snapshot.Field("dmPolicy")
	if !ok {
		findings = append(findings, types.Info(types.CategoryAccess,
			"dmPolicy is not configured, the gateway default (pairing) applies"))
		return findings
	}
	switch strings.ToLower(policy) {
	case "open":
		findings = append(findings, types.Critical(types.CategoryAccess,
			"dmPolicy is open, any inbound direct message reaches the agent").
			WithRemediation("set dmPolicy to pairing or an explicit allowlist"))
	case "pairing", "allowlist", "disabled":
		findings = append(findings, types.Pass(types.CategoryAccess,
			fmt.Sprintf("inbound message policy is %s", policy)))
	default:
		findings = append(findings, types.Warning(types.CategoryAccess,
			fmt.Sprintf("unrecognized dmPolicy value %q, manual check required", policy)))
	}
	return findings
}

func checkControlSurface(cc *CheckContext) []types.Finding {
	if !cc.Snapshot.HasConfig() {
		return []types.Finding{insufficient(types.CategoryControl, "no configuration file found")}
	}
	v, ok := cc.Snapshot.Scoped("controlUI", "enabled")
	if !ok {
		return []types.Finding{types.Info(types.CategoryControl,
			"control UI is not configured, disabled by default")}
	}
	enabled, known := boolValue(v)
	if !known {
		return []types.Finding{types.Warning(types.CategoryControl,
			fmt.Sprintf("unrecognized controlUI.enabled value %q, manual check required", v))}
	}
	if !enabled {
		return []types.Finding{types.Pass(types.CategoryControl, "control UI is disabled")}
	}

	bind, _ := bindMode(cc)
	_, authed := authMode(cc)
	switch {
	case !authed:
		return []types.Finding{types.Critical(types.CategoryControl,
			"control UI is enabled with no authentication, anyone who reaches it owns the agent").
			WithRemediation("configure auth.mode or disable controlUI")}
	case bind != "" && !loopbackBinds[bind]:
		return []types.Finding{types.Warning(types.CategoryControl,
			"control UI is enabled on a non-loopback bind, restrict access at the network layer")}
	default:
		return []types.Finding{types.Pass(types.CategoryControl,
			"control UI is enabled but restricted to loopback with authentication")}
	}
}

func checkReverseProxy(cc *CheckContext) []types.Finding {
	if !cc.Snapshot.HasConfig() {
		return []types.Finding{insufficient(types.CategoryProxy, "no configuration file found")}
	}

	trusted, trustedOK := cc.Snapshot.Field("trustedProxies")
	if trustedOK && (strings.Contains(trusted, "*") || strings.Contains(trusted, "0.0.0.0/0")) {
		return []types.Finding{types.Critical(types.CategoryProxy,
			"trustedProxies trusts every upstream, forwarded client identity can be spoofed").
			WithRemediation("list the reverse proxy addresses explicitly")}
	}

	behind, behindOK := cc.Snapshot.Field("behindProxy")
	if !behindOK {
		return []types.Finding{types.Info(types.CategoryProxy,
			"no reverse proxy configuration found")}
	}
	if b, known := boolValue(behind); known && b && !trustedOK {
		return []types.Finding{types.Warning(types.CategoryProxy,
			"behindProxy is set but trustedProxies is not, forwarded headers are accepted from anyone").
			WithRemediation("set trustedProxies to the proxy's address")}
	}
	return []types.Finding{types.Pass(types.CategoryProxy, "reverse proxy configuration looks consistent")}
}

// gatewayPort resolves the configured listen port, defaulting to the
// gateway's stock port.
func gatewayPort(cc *CheckContext) int {
	if v, ok := cc.Snapshot.Scoped("gateway", "port"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < 65536 {
			return n
		}
	}
	return 8787
}
