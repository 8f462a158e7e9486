package manifest

import (
	"testing"
)

func TestDecodeBasic(t *testing.T) {
	data := []byte(`
[sources]
community = { url = "https://github.com/example/community.git" }

[agents.main-app]
source = "community"
path = "agents/main-app.md"
version = "v1.0.0"
`)

	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	src, ok := m.Sources["community"]
	if !ok {
		t.Fatalf("expected source %q", "community")
	}
	if src.URL != "https://github.com/example/community.git" {
		t.Errorf("source URL = %q", src.URL)
	}

	dep, ok := m.Deps[ResourceAgent]["main-app"]
	if !ok {
		t.Fatalf("expected agent %q", "main-app")
	}
	if dep.Source != "community" || dep.Path != "agents/main-app.md" || dep.Version != "v1.0.0" {
		t.Errorf("unexpected dep: %+v", dep)
	}
	if !dep.InstallEnabled() {
		t.Error("expected InstallEnabled() to default true")
	}
}

func TestInstallFalseIsRespected(t *testing.T) {
	data := []byte(`
[sources]
s = { url = "https://example.com/s.git" }

[snippets.helper]
source = "s"
path = "snippets/helper.md"
install = false
`)
	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dep := m.Deps[ResourceSnippet]["helper"]
	if dep.InstallEnabled() {
		t.Error("expected InstallEnabled() false")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := New()
	m.Sources["community"] = Source{Name: "community", URL: "https://github.com/example/community.git"}
	installFalse := false
	m.Deps[ResourceAgent]["main-app"] = DependencySpec{
		Name:    "main-app",
		Source:  "community",
		Path:    "agents/main-app.md",
		Version: "v1.0.0",
	}
	m.Deps[ResourceSnippet]["helper"] = DependencySpec{
		Name:    "helper",
		Source:  "community",
		Path:    "snippets/helper.md",
		Install: &installFalse,
	}

	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	roundTripped, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode after Encode: %v", err)
	}

	if roundTripped.Sources["community"].URL != m.Sources["community"].URL {
		t.Errorf("source URL mismatch after round-trip")
	}
	if roundTripped.Deps[ResourceAgent]["main-app"].Version != "v1.0.0" {
		t.Errorf("version mismatch after round-trip")
	}
	if roundTripped.Deps[ResourceSnippet]["helper"].InstallEnabled() {
		t.Errorf("expected install=false to survive round-trip")
	}
}

func TestAllDependenciesOrdering(t *testing.T) {
	m := New()
	m.Deps[ResourceAgent]["zeta"] = DependencySpec{Name: "zeta", Path: "a.md"}
	m.Deps[ResourceAgent]["alpha"] = DependencySpec{Name: "alpha", Path: "b.md"}
	m.Deps[ResourceSnippet]["one"] = DependencySpec{Name: "one", Path: "c.md"}

	all := m.AllDependencies()
	if len(all) != 3 {
		t.Fatalf("expected 3 deps, got %d", len(all))
	}
	if all[0].Type != ResourceAgent || all[0].Spec.Name != "alpha" {
		t.Errorf("expected alpha first, got %+v", all[0])
	}
	if all[1].Spec.Name != "zeta" {
		t.Errorf("expected zeta second, got %+v", all[1])
	}
	if all[2].Type != ResourceSnippet {
		t.Errorf("expected snippet last, got %+v", all[2])
	}
}
