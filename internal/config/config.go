// Package config loads server settings from an optional YAML or JSON file
// and resolves the Azure DevOps personal access token from a file or the
// environment. Command-line flags override file values; the merge happens in
// the serve command, not here.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// PATEnvVar is consulted when no PAT file is configured.
const PATEnvVar = "ADO_PAT"

// Config is the serve command's file-backed configuration.
type Config struct {
	OrgURL    string `json:"org_url" yaml:"org_url"`       // e.g. https://dev.azure.com/myorg
	Project   string `json:"project" yaml:"project"`       // project name or id
	PATFile   string `json:"pat_file" yaml:"pat_file"`     // file whose first line is the PAT
	LogLevel  string `json:"log_level" yaml:"log_level"`   // debug, info, warn, error
	LogFormat string `json:"log_format" yaml:"log_format"` // text or json
}

// LoadFromPath reads a config file and parses it. Format is detected by
// extension (.yaml/.yml/.json) or, failing that, by content.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses config bytes. ext is the file extension for a format hint;
// empty means detect from content (JSON if it starts with '{', else YAML).
func Load(data []byte, ext string) (*Config, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			ext = ".json"
		} else {
			ext = ".yaml"
		}
	}

	var cfg Config
	switch ext {
	case ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return &cfg, nil
}

// ResolvePAT returns the personal access token: the first line of patFile
// when set, otherwise the PATEnvVar environment variable. An empty result is
// an error; every API call needs authentication.
func ResolvePAT(patFile string) (string, error) {
	if patFile != "" {
		data, err := os.ReadFile(patFile)
		if err != nil {
			return "", fmt.Errorf("read PAT file: %w", err)
		}
		pat := strings.TrimSpace(strings.Split(string(data), "\n")[0])
		if pat == "" {
			return "", fmt.Errorf("PAT file %s is empty", patFile)
		}
		return pat, nil
	}
	if pat := strings.TrimSpace(os.Getenv(PATEnvVar)); pat != "" {
		return pat, nil
	}
	return "", fmt.Errorf("no PAT configured: set pat_file or the %s environment variable", PATEnvVar)
}
