package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToQEMU(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := QEMUBoard()
	if cfg.Name != want.Name || cfg.MemoryEnd != want.MemoryEnd {
		t.Fatalf("expected the QEMU default, got %+v", cfg)
	}
}

func TestLoadParsesYAMLOverridingDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	contents := `
name: vf2
memory_end: 2147483648
hart_count: 4
mmio:
  - name: uart0
    start: 268435456
    len: 4096
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "vf2" {
		t.Fatalf("expected name vf2, got %q", cfg.Name)
	}
	if cfg.MemoryEnd != 2147483648 {
		t.Fatalf("expected memory_end 2147483648, got %d", cfg.MemoryEnd)
	}
	if cfg.HartCount != 4 {
		t.Fatalf("expected hart_count 4, got %d", cfg.HartCount)
	}
	if len(cfg.MMIO) != 1 || cfg.MMIO[0].Name != "uart0" {
		t.Fatalf("expected a single uart0 mmio range, got %+v", cfg.MMIO)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("not: valid: yaml: at all:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for malformed YAML")
	}
}

func TestQEMUAndVF2BoardsAreDistinct(t *testing.T) {
	q := QEMUBoard()
	v := VF2Board()
	if q.Name == v.Name {
		t.Fatalf("expected distinct board names, both were %q", q.Name)
	}
	if q.MemoryEnd == v.MemoryEnd {
		t.Fatalf("expected distinct memory_end values")
	}
}
