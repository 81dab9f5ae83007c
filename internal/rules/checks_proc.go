package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kcchien/clawpilot/internal/fileutil"
	"github.com/kcchien/clawpilot/internal/types"
)

// procNetFiles are probed for live listeners. Reading them is best
// effort: on platforms without procfs the check degrades to INFO.
var procNetFiles = []string{"/proc/net/tcp", "/proc/net/tcp6"}

const tcpStateListen = "0A"

type listener struct {
	addrHex string // kernel-format little-endian hex address
	port    int
}

// wildcardAddr reports whether a /proc/net local address is the
// all-interfaces address (all zero bytes, v4 or v6).
func (l listener) wildcardAddr() bool {
	return strings.Trim(l.addrHex, "0") == ""
}

// parseProcNetTCP extracts LISTEN sockets from /proc/net/tcp[6] content.
func parseProcNetTCP(data []byte) []listener {
	var out []listener
	lines := strings.Split(string(data), "\n")
	for _, line := range lines[1:] { // first line is the header
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[3] != tcpStateListen {
			continue
		}
		local := fields[1]
		colon := strings.LastIndex(local, ":")
		if colon < 0 {
			continue
		}
		port, err := strconv.ParseInt(local[colon+1:], 16, 32)
		if err != nil {
			continue
		}
		out = append(out, listener{addrHex: local[:colon], port: int(port)})
	}
	return out
}

func checkProcessExposure(cc *CheckContext) []types.Finding {
	port := gatewayPort(cc)

	var listeners []listener
	readAny := false
	for _, path := range procNetFiles {
		data, err := fileutil.ReadCapped(path)
		if err != nil {
			continue
		}
		readAny = true
		listeners = append(listeners, parseProcNetTCP(data)...)
	}
	if !readAny {
		return []types.Finding{types.Info(types.CategoryProcess,
			"live socket state is not inspectable on this platform, skipping process exposure check")}
	}

	for _, l := range listeners {
		if l.port != port {
			continue
		}
		if l.wildcardAddr() {
			_, authed := authMode(cc)
			if !authed {
				return []types.Finding{types.Critical(types.CategoryProcess,
					fmt.Sprintf("a process is listening on all interfaces at port %d with no gateway authentication configured", port)).
					WithRemediation("rebind the gateway to loopback or configure auth.mode")}
			}
			return []types.Finding{types.Warning(types.CategoryProcess,
				fmt.Sprintf("a process is listening on all interfaces at port %d", port))}
		}
		return []types.Finding{types.Pass(types.CategoryProcess,
			fmt.Sprintf("gateway port %d is bound to a specific address", port))}
	}
	return []types.Finding{types.Info(types.CategoryProcess,
		fmt.Sprintf("no live listener found on gateway port %d", port))}
}
