//go:build !unix

// Fallback for platforms without process groups: no signal is delivered at
// all. Both signalGroup and signalOne return an error saying signal delivery
// is not supported on this platform; nothing is logged here (see SPEC_FULL.md
// §4.3 addendum).
package supervisor

import (
	"fmt"
	"os/exec"
	"syscall"
)

const processGroupsSupported = false

func setProcessGroup(cmd *exec.Cmd) {}

func signalGroup(pid int, sig syscall.Signal) error {
	return signalOne(pid, sig)
}

func signalOne(pid int, sig syscall.Signal) error {
	return fmt.Errorf("supervisor: signal delivery not supported on this platform")
}
