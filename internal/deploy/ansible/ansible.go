// Package ansible is the one reference deploy.Backend this module ships:
// it generates an Ansible inventory and a build/deploy/teardown playbook
// trio from a materialized sandbox's SandboxManifest, and writes them to
// disk. It never invokes ansible-playbook itself — running the generated
// playbooks against real infrastructure is the out-of-scope collaborator
// named in spec.md §1. Grounded in original_source/tests/test_ansible.py's
// import surface (AnsibleBackend, AnsibleConfig, generate_inventory,
// generate_build_playbook, generate_deploy_playbook,
// generate_teardown_playbook).
package ansible

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pactown/pactown/internal/deploy"
	"github.com/pactown/pactown/internal/manifest"
)

// AnsibleConfig extends deploy.DeploymentConfig with the one ansible-
// specific knob this backend has: when BecomeUser is non-empty, every
// generated playbook sets `become: true` (sudo). The user name itself is
// not written into the playbooks, so Ansible's default become user applies.
type AnsibleConfig struct {
	deploy.DeploymentConfig
	BecomeUser string
}

// AnsibleBackend implements deploy.Backend by rendering YAML inventory and
// playbook files; Apply only ever writes files under destDir.
type AnsibleBackend struct {
	Config AnsibleConfig
}

// NewAnsibleBackend builds a Backend bound to cfg.
func NewAnsibleBackend(cfg AnsibleConfig) *AnsibleBackend {
	return &AnsibleBackend{Config: cfg}
}

// Plan renders the inventory plus whichever single playbook mode calls
// for, per spec §6's "generated Ansible inventory + playbook trio".
func (b *AnsibleBackend) Plan(m manifest.Manifest, cfg deploy.DeploymentConfig, mode deploy.DeploymentMode) (deploy.Plan, error) {
	files := map[string]string{
		"inventory.yaml": generateInventory(cfg),
	}

	switch mode {
	case deploy.ModeBuild:
		files["build.yaml"] = generateBuildPlaybook(m, cfg, b.Config.BecomeUser)
	case deploy.ModeDeploy:
		files["deploy.yaml"] = generateDeployPlaybook(m, cfg, b.Config.BecomeUser)
	case deploy.ModeTeardown:
		files["teardown.yaml"] = generateTeardownPlaybook(m, cfg, b.Config.BecomeUser)
	default:
		return deploy.Plan{}, fmt.Errorf("ansible: unsupported deployment mode %q", mode)
	}

	return deploy.Plan{Mode: mode, Files: files}, nil
}

// Apply writes plan's rendered files to destDir. It never shells out to
// ansible-playbook; a caller that wants to actually run the generated
// playbooks does so itself, outside this module's scope.
func (b *AnsibleBackend) Apply(plan deploy.Plan, destDir string) (deploy.DeploymentResult, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return deploy.DeploymentResult{}, fmt.Errorf("ansible: mkdir %s: %w", destDir, err)
	}
	for name, contents := range plan.Files {
		path := filepath.Join(destDir, name)
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			return deploy.DeploymentResult{}, fmt.Errorf("ansible: write %s: %w", path, err)
		}
	}
	return deploy.DeploymentResult{
		Success: true,
		Message: fmt.Sprintf("wrote %d file(s) to %s", len(plan.Files), destDir),
	}, nil
}

type inventoryHost struct {
	AnsibleHost string `yaml:"ansible_host"`
	AnsibleUser string `yaml:"ansible_user,omitempty"`
}

type inventoryGroup struct {
	Hosts map[string]inventoryHost `yaml:"hosts"`
}

type inventory struct {
	All inventoryGroup `yaml:"all"`
}

func generateInventory(cfg deploy.DeploymentConfig) string {
	inv := inventory{All: inventoryGroup{Hosts: map[string]inventoryHost{
		cfg.Host: {AnsibleHost: cfg.Host, AnsibleUser: cfg.User},
	}}}
	data, err := yaml.Marshal(inv)
	if err != nil {
		return fmt.Sprintf("# ansible: failed to marshal inventory: %v\n", err)
	}
	return string(data)
}

type play struct {
	Name   string `yaml:"name"`
	Hosts  string `yaml:"hosts"`
	Become bool   `yaml:"become,omitempty"`
	Vars   map[string]any `yaml:"vars,omitempty"`
	Tasks  []task `yaml:"tasks"`
}

type task struct {
	Name    string            `yaml:"name"`
	Copy    map[string]string `yaml:"ansible.builtin.copy,omitempty"`
	Shell   string            `yaml:"ansible.builtin.shell,omitempty"`
	Systemd map[string]any    `yaml:"ansible.builtin.systemd,omitempty"`
	File    map[string]string `yaml:"ansible.builtin.file,omitempty"`
}

func installTask(runtime string) task {
	if runtime == string(deploy.RuntimeNode) {
		return task{Name: "install node dependencies", Shell: "cd {{ remote_dir }} && npm install --omit=dev"}
	}
	return task{Name: "install python dependencies", Shell: "cd {{ remote_dir }} && pip install --no-cache-dir -r requirements.txt"}
}

func marshalPlaybook(plays []play) string {
	data, err := yaml.Marshal(plays)
	if err != nil {
		return fmt.Sprintf("# ansible: failed to marshal playbook: %v\n", err)
	}
	return string(data)
}

func generateBuildPlaybook(m manifest.Manifest, cfg deploy.DeploymentConfig, becomeUser string) string {
	p := play{
		Name:   fmt.Sprintf("build %s", m.Metadata.Name),
		Hosts:  cfg.Host,
		Become: becomeUser != "",
		Vars:   map[string]any{"remote_dir": cfg.RemoteDir},
		Tasks: []task{
			{Name: "ensure remote directory exists", File: map[string]string{"path": "{{ remote_dir }}", "state": "directory"}},
			{Name: "sync sandbox sources", Copy: map[string]string{"src": "./", "dest": "{{ remote_dir }}"}},
			installTask(m.Spec.Runtime.Type),
		},
	}
	return marshalPlaybook([]play{p})
}

func generateDeployPlaybook(m manifest.Manifest, cfg deploy.DeploymentConfig, becomeUser string) string {
	unitName := m.Metadata.Name + ".service"
	p := play{
		Name:   fmt.Sprintf("deploy %s", m.Metadata.Name),
		Hosts:  cfg.Host,
		Become: becomeUser != "",
		Vars:   map[string]any{"remote_dir": cfg.RemoteDir, "port": m.Spec.Run.Port},
		Tasks: []task{
			{
				Name: "write systemd unit",
				Copy: map[string]string{
					"dest":    "/etc/systemd/system/" + unitName,
					"content": systemdUnit(m, cfg),
				},
			},
			{Name: "reload systemd", Shell: "systemctl daemon-reload"},
			{Name: "enable and start service", Systemd: map[string]any{"name": unitName, "enabled": true, "state": "restarted"}},
		},
	}
	return marshalPlaybook([]play{p})
}

func generateTeardownPlaybook(m manifest.Manifest, cfg deploy.DeploymentConfig, becomeUser string) string {
	unitName := m.Metadata.Name + ".service"
	p := play{
		Name:   fmt.Sprintf("tear down %s", m.Metadata.Name),
		Hosts:  cfg.Host,
		Become: becomeUser != "",
		Tasks: []task{
			{Name: "stop and disable service", Systemd: map[string]any{"name": unitName, "enabled": false, "state": "stopped"}},
			{Name: "remove systemd unit", File: map[string]string{"path": "/etc/systemd/system/" + unitName, "state": "absent"}},
			{Name: "remove remote directory", File: map[string]string{"path": cfg.RemoteDir, "state": "absent"}},
		},
	}
	return marshalPlaybook([]play{p})
}

func systemdUnit(m manifest.Manifest, cfg deploy.DeploymentConfig) string {
	return fmt.Sprintf(`[Unit]
Description=%s (pactown-managed)
After=network.target

[Service]
WorkingDirectory=%s
ExecStart=/bin/sh -c %q
Environment=PORT=%d
Restart=on-failure

[Install]
WantedBy=multi-user.target
`, m.Metadata.Name, cfg.RemoteDir, m.Spec.Run.Command, m.Spec.Run.Port)
}
