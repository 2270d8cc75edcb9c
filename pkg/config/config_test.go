package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	fails bool
}

func (s *sample) Validate() error {
	if s.fails || s.Port < 0 {
		return errors.New("invalid")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("NOTECHECK_TEST_NAME", "from-env")
	p := writeConfig(t, "name: ${NOTECHECK_TEST_NAME}\nport: 9000\n")

	var got sample
	if err := Load(p, &got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "from-env" || got.Port != 9000 {
		t.Errorf("got %+v", got)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeConfig(t, "port: -1\n")
	var got sample
	if err := Load(p, &got); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOrDefault_MissingFileKeepsDefaults(t *testing.T) {
	got := sample{Name: "default", Port: 8080}
	if err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), &got); err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if got.Name != "default" || got.Port != 8080 {
		t.Errorf("defaults changed: %+v", got)
	}

	bad := sample{fails: true}
	if err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), &bad); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoadOrDefault_OverlaysFile(t *testing.T) {
	p := writeConfig(t, "port: 9090\n")
	got := sample{Name: "default", Port: 8080}
	if err := LoadOrDefault(p, &got); err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if got.Name != "default" || got.Port != 9090 {
		t.Errorf("got %+v, want name kept and port overridden", got)
	}
}
