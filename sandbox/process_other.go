//go:build !unix

package sandbox

import "os/exec"

// Process groups are unix-only; elsewhere the default cancellation, which
// kills the direct child, applies.
func setProcessGroup(*exec.Cmd) {}

func killProcessGroup(*exec.Cmd) {}
