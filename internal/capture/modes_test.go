package capture_test

import (
	"os"
	"path/filepath"
	"testing"

	"fieldcam/internal/capture"
)

func TestDefaultCatalogHasBuiltins(t *testing.T) {
	catalog := capture.DefaultCatalog()
	want := map[string][3]int{
		"preview":  {640, 480, 15},
		"standard": {1280, 720, 30},
		"survey":   {1920, 1080, 5},
	}
	for name, dims := range want {
		mode, ok := catalog.Lookup(name)
		if !ok {
			t.Fatalf("missing built-in mode %q", name)
		}
		if mode.Width != dims[0] || mode.Height != dims[1] || mode.FPS != dims[2] {
			t.Fatalf("mode %s = %+v", name, mode)
		}
	}
	if _, ok := catalog.Lookup("STANDARD"); !ok {
		t.Fatal("lookup should be case-insensitive")
	}
}

func TestLoadCatalogMergesPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.yaml")
	content := `
modes:
  - name: Night
    description: long exposure
    width: 800
    height: 600
    fps: 2
  - name: preview
    width: 320
    height: 240
    fps: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	catalog, err := capture.LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	night, ok := catalog.Lookup("night")
	if !ok || night.FPS != 2 || night.Format != "jpeg" {
		t.Fatalf("unexpected night mode: %+v ok=%v", night, ok)
	}
	preview, _ := catalog.Lookup("preview")
	if preview.Width != 320 {
		t.Fatalf("preset should override built-in, got %+v", preview)
	}
	if len(catalog.Modes()) != 4 {
		t.Fatalf("expected 4 modes, got %d", len(catalog.Modes()))
	}
}

func TestLoadCatalogRejectsInvalidPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.yaml")
	if err := os.WriteFile(path, []byte("modes:\n  - name: broken\n    width: 0\n    height: 10\n    fps: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := capture.LoadCatalog(path); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := capture.LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}
