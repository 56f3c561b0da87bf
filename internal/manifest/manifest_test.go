package manifest

import (
	"testing"
)

const simpleManifest = `
[package]
name = "simple"

[workspace]
members = ["a", "b", "c"]

[dependencies]
all = "*"
direct1 = "0.1.0"
direct2 = "=0.1.0"
table1 = { version = "0.1.0" }
table2 = { version = "0.1.0", features = ["full"] }
git = { git = "https://github.com/xxx/xxx" }
custom-registry = { registry = "xxx" }
path = { path = "xxx" }

[build-dependencies]
build-dependency = "0.1.0"
`

func TestParseSimpleManifest(t *testing.T) {
	m, err := Parse([]byte(simpleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if m.Package == nil || m.Package.Name != "simple" {
		t.Errorf("package = %v, want simple", m.Package)
	}
	wantMembers := []string{"a", "b", "c"}
	if len(m.Workspace.Members) != len(wantMembers) {
		t.Fatalf("members = %v, want %v", m.Workspace.Members, wantMembers)
	}
	for i, w := range wantMembers {
		if m.Workspace.Members[i] != w {
			t.Errorf("members[%d] = %q, want %q", i, m.Workspace.Members[i], w)
		}
	}

	wantKinds := map[string]DependencyKind{
		"all":             Direct,
		"direct1":         Direct,
		"direct2":         Direct,
		"table1":          Table,
		"table2":          Table,
		"git":             Git,
		"custom-registry": CustomRegistry,
		"path":            Path,
	}
	if len(m.Dependencies) != len(wantKinds) {
		t.Fatalf("got %d dependencies, want %d", len(m.Dependencies), len(wantKinds))
	}
	for name, kind := range wantKinds {
		dep, ok := m.Dependencies[name]
		if !ok {
			t.Errorf("missing dependency %q", name)
			continue
		}
		if dep.Kind != kind {
			t.Errorf("%s: kind = %v, want %v", name, dep.Kind, kind)
		}
	}

	if len(m.BuildDependencies) != 1 {
		t.Errorf("build-dependencies = %v, want 1 entry", m.BuildDependencies)
	}
	if len(m.DevDependencies) != 0 {
		t.Errorf("dev-dependencies = %v, want none", m.DevDependencies)
	}
}

func TestParseRequirementCompiled(t *testing.T) {
	m, err := Parse([]byte("[dependencies]\nserde = \"1.0\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dep := m.Dependencies["serde"]
	req, ok := dep.Requirement()
	if !ok || req == nil {
		t.Fatal("direct dependency should carry a requirement")
	}
	if dep.ReqText != "1.0" {
		t.Errorf("ReqText = %q, want 1.0", dep.ReqText)
	}
}

func TestParseNonRegistryHasNoRequirement(t *testing.T) {
	m, err := Parse([]byte("[dependencies]\nlocal = { path = \"../local\" }\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dep := m.Dependencies["local"]
	if dep.Kind != Path || dep.Source != "../local" {
		t.Errorf("got %+v, want Path ../local", dep)
	}
	if _, ok := dep.Requirement(); ok {
		t.Error("path dependency should not resolve against the registry")
	}
}

func TestParsePathWinsOverVersion(t *testing.T) {
	// A table with both path and version is a path dependency: the
	// variants are tried in the order path, git, registry, version.
	m, err := Parse([]byte("[dependencies]\nlocal = { path = \"../local\", version = \"1.0\" }\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Dependencies["local"].Kind != Path {
		t.Errorf("kind = %v, want Path", m.Dependencies["local"].Kind)
	}
}

func TestParseRejectsUnknownTable(t *testing.T) {
	_, err := Parse([]byte("[dependencies]\nmystery = { features = [\"x\"] }\n"))
	if err == nil {
		t.Error("table without path/git/registry/version should fail the manifest")
	}
}

func TestParseRejectsInvalidRequirement(t *testing.T) {
	_, err := Parse([]byte("[dependencies]\nbroken = \"not a requirement\"\n"))
	if err == nil {
		t.Error("invalid requirement should fail the manifest")
	}
}

func TestParseRejectsInvalidTOML(t *testing.T) {
	_, err := Parse([]byte("[package\nname ="))
	if err == nil {
		t.Error("invalid TOML should fail")
	}
}

func TestParseNoPackage(t *testing.T) {
	m, err := Parse([]byte("[workspace]\nmembers = [\"x\"]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Package != nil {
		t.Errorf("package = %v, want nil", m.Package)
	}
	if len(m.Workspace.Members) != 1 || m.Workspace.Members[0] != "x" {
		t.Errorf("members = %v, want [x]", m.Workspace.Members)
	}
}
