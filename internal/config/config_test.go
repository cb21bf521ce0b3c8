package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func noEnv(string) string { return "" }

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	p, err := Load(Sources{EnvFile: filepath.Join(t.TempDir(), "missing.env"), Getenv: noEnv})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Domain != "" || p.MaxDrift != 0 {
		t.Errorf("Load() = %+v, want zero profile", p)
	}
}

func TestLoad_Layering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	profile := writeFile(t, dir, "profile.yaml", "domain: file/v1\nmax_drift: 30s\n")
	envFile := writeFile(t, dir, ".env", "CRYPTOHELPER_MAX_DRIFT=1m\n")

	tests := []struct {
		name      string
		env       map[string]string
		wantDom   string
		wantDrift time.Duration
	}{
		{"file and dotenv", nil, "file/v1", time.Minute},
		{"environment wins", map[string]string{EnvDomain: "env/v1", EnvMaxDrift: "5s"}, "env/v1", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Load(Sources{
				Path:    profile,
				EnvFile: envFile,
				Getenv:  func(k string) string { return tt.env[k] },
			})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if p.Domain != tt.wantDom {
				t.Errorf("Domain = %q, want %q", p.Domain, tt.wantDom)
			}
			if p.MaxDrift != tt.wantDrift {
				t.Errorf("MaxDrift = %v, want %v", p.MaxDrift, tt.wantDrift)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missingEnv := filepath.Join(dir, "missing.env")

	tests := []struct {
		name string
		src  Sources
	}{
		{"missing profile", Sources{Path: filepath.Join(dir, "nope.yaml"), EnvFile: missingEnv, Getenv: noEnv}},
		{"bad yaml", Sources{Path: writeFile(t, dir, "bad.yaml", "domain: [\n"), EnvFile: missingEnv, Getenv: noEnv}},
		{"negative drift in file", Sources{Path: writeFile(t, dir, "neg.yaml", "max_drift: -1s\n"), EnvFile: missingEnv, Getenv: noEnv}},
		{"bad env drift", Sources{EnvFile: missingEnv, Getenv: func(k string) string {
			if k == EnvMaxDrift {
				return "soon"
			}
			return ""
		}}},
		{"bad dotenv drift", Sources{EnvFile: writeFile(t, dir, "bad.env", "CRYPTOHELPER_MAX_DRIFT=-3s\n"), Getenv: noEnv}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.src); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}
