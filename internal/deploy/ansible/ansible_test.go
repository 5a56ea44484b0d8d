package ansible

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/pactown/pactown/internal/deploy"
	"github.com/pactown/pactown/internal/manifest"
	"github.com/pactown/pactown/internal/markpact"
)

func testManifest() manifest.Manifest {
	return manifest.BuildManifest("api", markpact.RuntimePython, nil, "uvicorn main:app --port 8001", 8001, "/health", nil)
}

func testConfig() deploy.DeploymentConfig {
	return deploy.DeploymentConfig{Host: "10.0.0.5", User: "deploy", RemoteDir: "/srv/api"}
}

func TestGenerateInventoryContainsHost(t *testing.T) {
	out := generateInventory(testConfig())

	var parsed inventory
	if err := yaml.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("unmarshal inventory: %v", err)
	}
	host, ok := parsed.All.Hosts["10.0.0.5"]
	if !ok {
		t.Fatalf("inventory missing host, got %v", parsed.All.Hosts)
	}
	if host.AnsibleUser != "deploy" {
		t.Errorf("ansible_user = %q, want deploy", host.AnsibleUser)
	}
}

func TestPlanBuildIncludesInventoryAndBuildPlaybook(t *testing.T) {
	b := NewAnsibleBackend(AnsibleConfig{DeploymentConfig: testConfig()})
	plan, err := b.Plan(testManifest(), testConfig(), deploy.ModeBuild)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, ok := plan.Files["inventory.yaml"]; !ok {
		t.Error("plan missing inventory.yaml")
	}
	if _, ok := plan.Files["build.yaml"]; !ok {
		t.Error("plan missing build.yaml")
	}
	if !strings.Contains(plan.Files["build.yaml"], "pip install") {
		t.Errorf("build playbook should install python deps, got:\n%s", plan.Files["build.yaml"])
	}
}

func TestPlanDeployRendersSystemdUnit(t *testing.T) {
	b := NewAnsibleBackend(AnsibleConfig{DeploymentConfig: testConfig(), BecomeUser: "root"})
	plan, err := b.Plan(testManifest(), testConfig(), deploy.ModeDeploy)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	deployPlaybook, ok := plan.Files["deploy.yaml"]
	if !ok {
		t.Fatal("plan missing deploy.yaml")
	}
	if !strings.Contains(deployPlaybook, "api.service") {
		t.Errorf("deploy playbook should reference api.service, got:\n%s", deployPlaybook)
	}
}

func TestPlanRejectsUnknownMode(t *testing.T) {
	b := NewAnsibleBackend(AnsibleConfig{DeploymentConfig: testConfig()})
	if _, err := b.Plan(testManifest(), testConfig(), deploy.DeploymentMode("bogus")); err == nil {
		t.Fatal("expected an error for an unsupported deployment mode")
	}
}

func TestApplyWritesFilesToDestDir(t *testing.T) {
	b := NewAnsibleBackend(AnsibleConfig{DeploymentConfig: testConfig()})
	plan, err := b.Plan(testManifest(), testConfig(), deploy.ModeTeardown)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	dest := t.TempDir()
	result, err := b.Apply(plan, dest)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !result.Success {
		t.Errorf("result.Success = false, want true")
	}
	for name := range plan.Files {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}
}
