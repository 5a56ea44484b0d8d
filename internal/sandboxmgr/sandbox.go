// Package sandboxmgr materializes a markpact document into an on-disk
// sandbox directory: file blocks written out, dependencies installed
// (cache-consulted), and a manifest triple emitted, per spec §4.5.
package sandboxmgr

import (
	"github.com/pactown/pactown/internal/fingerprint"
	"github.com/pactown/pactown/internal/markpact"
)

// Sandbox is the materialized result of CreateSandbox, per spec §3.
// It is created once per service by its owning SandboxManager. Pid is not
// filled in by CreateSandbox or the Process Supervisor; the running
// process's pid is on the supervisor's ProcessHandle.
type Sandbox struct {
	Path            string
	ServiceName     string
	RuntimeKind     markpact.RuntimeKind
	Port            int
	DepsFingerprint fingerprint.Fingerprint
	RunCmd          string
	Pid             int
}
