// Package config loads the profile of the command line tools.
//
// Values are layered: defaults, then the YAML profile file, then a .env
// file, then the process environment. Command line flags are applied last
// by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvDomain   = "CRYPTOHELPER_DOMAIN"
	EnvMaxDrift = "CRYPTOHELPER_MAX_DRIFT"
)

// DefaultEnvFile is the .env file read when Sources.EnvFile is empty.
const DefaultEnvFile = ".env"

// Profile holds the settings shared by the envelope commands.
type Profile struct {
	// Domain is the application domain bound into signatures and
	// encryptions.
	Domain string `yaml:"domain"`

	// MaxDrift bounds the signature timestamp check. Zero disables it.
	MaxDrift time.Duration `yaml:"max_drift"`
}

// Sources names where Load reads from. Empty fields fall back to defaults.
type Sources struct {
	// Path is the YAML profile file. Empty means no file.
	Path string

	// EnvFile is the dotenv file. A missing file is not an error.
	EnvFile string

	// Getenv reads the process environment. Defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds a profile from src.
func Load(src Sources) (*Profile, error) {
	p := &Profile{}

	if src.Path != "" {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", src.Path, err)
		}
		if p.MaxDrift < 0 {
			return nil, fmt.Errorf("parse profile %s: negative max_drift", src.Path)
		}
	}

	envFile := src.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	}
	if err := p.apply(func(k string) string { return dotenv[k] }); err != nil {
		return nil, fmt.Errorf("%s: %w", envFile, err)
	}

	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := p.apply(getenv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return p, nil
}

func (p *Profile) apply(lookup func(string) string) error {
	if v := strings.TrimSpace(lookup(EnvDomain)); v != "" {
		p.Domain = v
	}
	if v := strings.TrimSpace(lookup(EnvMaxDrift)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxDrift, err)
		}
		if d < 0 {
			return fmt.Errorf("%s: negative duration", EnvMaxDrift)
		}
		p.MaxDrift = d
	}
	return nil
}
