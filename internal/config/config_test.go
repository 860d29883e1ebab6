package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tycheck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing project file: %v", err)
	}
	return path
}

func TestLoadProject(t *testing.T) {
	path := writeProject(t, "maxLoopVisits: 8\nmaxWalkerCallsPerLoop: 100\ncachePath: .tycheck.db\n")
	p, err := LoadProject(path)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if p.LoopVisits() != 8 {
		t.Errorf("LoopVisits = %d, want 8", p.LoopVisits())
	}
	if p.WalkerCallsPerLoop() != 100 {
		t.Errorf("WalkerCallsPerLoop = %d, want 100", p.WalkerCallsPerLoop())
	}
	if p.CachePath != ".tycheck.db" {
		t.Errorf("CachePath = %q", p.CachePath)
	}
}

func TestProjectDefaults(t *testing.T) {
	var p *Project
	if p.LoopVisits() != MaxLoopVisits {
		t.Errorf("nil project should use the default loop cap")
	}
	if p.WalkerCallsPerLoop() != MaxWalkerCallsPerLoop {
		t.Errorf("nil project should use the default walker budget")
	}

	empty, err := LoadProject(writeProject(t, "{}\n"))
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if empty.LoopVisits() != MaxLoopVisits {
		t.Errorf("zero values should fall back to defaults")
	}
}

func TestLoadProjectErrors(t *testing.T) {
	if _, err := LoadProject(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file should error")
	}
	if _, err := LoadProject(writeProject(t, "maxLoopVisits: [\n")); err == nil {
		t.Errorf("bad yaml should error")
	}
	if _, err := LoadProject(writeProject(t, "maxLoopVisits: -2\n")); err == nil {
		t.Errorf("negative limit should error")
	}
}
