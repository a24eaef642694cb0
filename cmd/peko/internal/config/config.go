// Package config loads the optional peko.yaml used by the peko CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the project root.
const FileName = "peko.yaml"

// DefaultTimeout bounds one interactive request when host.timeout is unset.
const DefaultTimeout = 30 * time.Second

// Codec names accepted by host.codec.
const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

// Config represents the optional peko.yaml configuration.
type Config struct {
	App  AppConfig  `yaml:"app"`
	Host HostConfig `yaml:"host"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
}

// HostConfig describes the simulated native host.
type HostConfig struct {
	Codec     string              `yaml:"codec,omitempty"`
	Timeout   string              `yaml:"timeout,omitempty"`
	Granted   []string            `yaml:"granted,omitempty"`
	Decisions map[string]Decision `yaml:"decisions,omitempty"`
}

// Decision is the scripted user answer for one permission.
type Decision struct {
	Granted bool `yaml:"granted"`
	// CanShowAgain defaults to true when omitted.
	CanShowAgain *bool `yaml:"canShowAgain,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root       string
	ModulePath string
	AppName    string
	Codec      string
	Timeout    time.Duration
	Granted    []string
	Decisions  map[string]ResolvedDecision
}

// ResolvedDecision is a Decision with defaults applied.
type ResolvedDecision struct {
	Granted      bool
	CanShowAgain bool
}

// Load reads the config file at path. The file must exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parse(path, data)
}

// LoadOptional reads peko.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

// Resolve loads the config (path, or peko.yaml in dir when path is empty)
// and resolves defaults.
func Resolve(dir, path string) (*Resolved, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = Load(path)
	} else {
		cfg, err = LoadOptional(dir)
	}
	if err != nil {
		return nil, err
	}
	return cfg.resolve(dir)
}

func (cfg *Config) resolve(dir string) (*Resolved, error) {
	modulePath := modulePath(dir)

	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(modulePath, dir)
	}

	codec := strings.ToLower(strings.TrimSpace(cfg.Host.Codec))
	if codec == "" {
		codec = CodecJSON
	}
	if err := ValidateCodec(codec); err != nil {
		return nil, err
	}

	timeout := DefaultTimeout
	if s := strings.TrimSpace(cfg.Host.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("host.timeout: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("host.timeout must not be negative (got %s)", s)
		}
		timeout = d
	}

	var granted []string
	for _, name := range cfg.Host.Granted {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("host.granted contains an empty permission name")
		}
		if !slices.Contains(granted, name) {
			granted = append(granted, name)
		}
	}

	decisions := make(map[string]ResolvedDecision, len(cfg.Host.Decisions))
	for name, d := range cfg.Host.Decisions {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("host.decisions contains an empty permission name")
		}
		canShowAgain := true
		if d.CanShowAgain != nil {
			canShowAgain = *d.CanShowAgain
		}
		decisions[name] = ResolvedDecision{Granted: d.Granted, CanShowAgain: canShowAgain}
	}

	return &Resolved{
		Root:       dir,
		ModulePath: modulePath,
		AppName:    appName,
		Codec:      codec,
		Timeout:    timeout,
		Granted:    granted,
		Decisions:  decisions,
	}, nil
}

// ValidateCodec reports whether name is a supported codec.
func ValidateCodec(name string) error {
	switch name {
	case CodecJSON, CodecCBOR:
		return nil
	default:
		return fmt.Errorf("host.codec must be %q or %q (got %q)", CodecJSON, CodecCBOR, name)
	}
}

// FindProjectRoot walks up from the current directory to find go.mod.
// It falls back to the current directory outside a Go module.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// modulePath returns the module path declared in dir/go.mod, or "".
func modulePath(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

func defaultAppName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modulePath != "" {
		modName, _, ok := module.SplitPathVersion(modulePath)
		if ok {
			parts := strings.Split(modName, "/")
			if len(parts) > 0 {
				base = parts[len(parts)-1]
			}
		}
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "peko_app"
	}
	return base
}
