//go:build unix

// Platform-specific process group setup. On Unix, every spawned task gets its
// own process group so a Kill{children:true} can reach grandchildren the
// shell itself spawned (a build pipeline's sub-make, for instance).
//
// Grounded on other_examples' wingedpig-trellis internal/service/process.go
// (same cmd.SysProcAttr{Setpgid: true} idiom) and drewkett/pueue's daemon
// process handling, which relies on the OS's own process-group semantics.
package supervisor

import (
	"os/exec"
	"syscall"
)

const processGroupsSupported = true

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the process group headed by pid (negative pid
// is the process-group signal convention on Unix).
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

func signalOne(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
