package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "cs101")
	p := filepath.Join(t.TempDir(), "c.yaml")
	_ = os.WriteFile(p, []byte("name: ${SAMPLE_NAME}\nport: 80\n"), 0o644)

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "cs101" || s.Port != 80 {
		t.Errorf("s = %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.yaml")
	_ = os.WriteFile(p, []byte("name: x\n"), 0o644)

	var s sample
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "port is required") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	s := sample{Port: 8080}
	if err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), &s); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if s.Port != 8080 {
		t.Errorf("defaults changed: %+v", s)
	}

	var empty sample
	if err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), &empty); err == nil {
		t.Error("defaults should still be validated")
	}
}
