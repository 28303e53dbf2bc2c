//go:build !windows

// Copyright 2026 The Ecovisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ecovisor

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr puts the child in a process group of its own, so that
// signals reach everything it spawned, and so that a terminal signal aimed
// at the daemon does not reach the child.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// signalGroup delivers sig to the process group led by proc.  A group that
// has already gone away is not an error.
func signalGroup(proc *os.Process, sig syscall.Signal) error {
	if e := syscall.Kill(-proc.Pid, sig); e != nil && e != syscall.ESRCH {
		return e
	}
	return nil
}
