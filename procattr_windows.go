//go:build windows

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

func setProcAttr(cmd *exec.Cmd) {}

// signalGroup can only reach the process itself here, and only SIGKILL is
// deliverable.
func signalGroup(proc *os.Process, sig syscall.Signal) error {
	if sig == syscall.SIGKILL {
		return proc.Kill()
	}
	if e := proc.Signal(sig); e != nil {
		return proc.Kill()
	}
	return nil
}
