//go:build !unix

package compute

import "os/exec"

// configureProcess relies on exec.CommandContext's default kill.
func configureProcess(*exec.Cmd) {}
