package browser

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// debugPortHint scans running processes for a chromium-family browser started with
// the remote debugging port. Used to produce an actionable message on failed connect.
func debugPortHint() string {
	procs, err := process.Processes()
	if err != nil {
		return ""
	}

	browserFound := false
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || !isBrowserProc(name) {
			continue
		}
		browserFound = true
		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}
		if strings.Contains(cmdline, "--remote-debugging-port") {
			return fmt.Sprintf("found %s with remote debugging enabled, check the port matches", name)
		}
	}

	if browserFound {
		return "a browser is running but without --remote-debugging-port, restart it with the flag"
	}
	return "no chromium-family browser running, start one with --remote-debugging-port=9222"
}

// isBrowserProc matches chromium-family process names
func isBrowserProc(name string) bool {
	name = strings.ToLower(name)
	for _, b := range []string{"chrome", "chromium", "msedge", "brave"} {
		if strings.Contains(name, b) {
			return true
		}
	}
	return false
}
