// Package deploy defines the out-of-scope deployment-backend boundary
// named in spec.md §1/§6: a remote deployment backend consumes only the
// persisted SandboxManifest triple, never the pipeline's internals. This
// package ships the interface and a DeploymentConfig/Plan/DeploymentResult
// shape; internal/deploy/ansible is the one reference implementation, kept
// deliberately thin.
package deploy

import "github.com/pactown/pactown/internal/manifest"

// RuntimeType mirrors markpact.RuntimeKind at the deployment boundary, kept
// as its own type so a Backend never needs to import internal/markpact.
type RuntimeType string

const (
	RuntimePython RuntimeType = "python"
	RuntimeNode   RuntimeType = "node"
)

// DeploymentMode selects which lifecycle action a Backend.Plan call is
// for, grounded in the original's pactown.deploy.base.DeploymentMode.
type DeploymentMode string

const (
	ModeBuild    DeploymentMode = "build"
	ModeDeploy   DeploymentMode = "deploy"
	ModeTeardown DeploymentMode = "teardown"
)

// DeploymentConfig names the remote target a Backend provisions a
// materialized sandbox onto. It never carries credentials directly: Host
// and User identify the target, SSHKeyPath points at a key file on disk.
type DeploymentConfig struct {
	Host       string
	User       string
	RemoteDir  string
	SSHKeyPath string
}

// DeploymentResult reports what Apply did, mirroring the
// {success, message, kind} shape used elsewhere in this module (spec §7),
// without pulling in pactownerr.Kind since deployment failures are a
// different taxonomy (SSH errors, missing ansible-playbook, etc.).
type DeploymentResult struct {
	Success bool
	Message string
}

// Plan is a set of file contents a Backend wants written to a destination
// directory before Apply is invoked — e.g. an Ansible inventory and
// playbook trio. Plan never executes anything itself; generating it is a
// pure function of a SandboxManifest and a DeploymentConfig.
type Plan struct {
	Mode  DeploymentMode
	Files map[string]string
}

// Backend is the interface a remote deployment backend implements. This
// module ships no backend that actually provisions infrastructure: the
// concrete act of running ansible-playbook (or any other provisioner) is
// an external collaborator, out of scope per spec.md §1.
type Backend interface {
	Plan(m manifest.Manifest, cfg DeploymentConfig, mode DeploymentMode) (Plan, error)
	Apply(plan Plan, destDir string) (DeploymentResult, error)
}
