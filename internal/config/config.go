// Package config loads imgapi settings from a YAML file.
//
// Lookup order is an explicit path, then imgapi.yaml in the working
// directory, then ~/.imgapi.yaml. Missing files yield DefaultConfig().
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"imgapi/internal/model"
)

// Config represents the imgapi configuration
type Config struct {
	Endpoint       string            `yaml:"endpoint,omitempty"`
	Method         string            `yaml:"method,omitempty"`
	Variant        string            `yaml:"variant,omitempty"`
	Encoding       string            `yaml:"encoding,omitempty"`
	Projects       []string          `yaml:"projects,omitempty"`
	DefaultProject string            `yaml:"defaultProject,omitempty"`
	Timeout        string            `yaml:"timeout,omitempty"`      // API call, e.g. "60s"
	ImageTimeout   string            `yaml:"imageTimeout,omitempty"` // image byte fetch
	ExportDir      string            `yaml:"exportDir,omitempty"`
	UserAgent      string            `yaml:"userAgent,omitempty"`
	NoColor        *bool             `yaml:"noColor,omitempty"`
	Aliases        map[string]string `yaml:"aliases,omitempty"` // name -> base URL
	Params         []model.Parameter `yaml:"params,omitempty"`
}

// ConfigFilenames contains the file names searched in the working directory
var ConfigFilenames = []string{
	"imgapi.yaml",
	"imgapi.yml",
	".imgapi.yaml",
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// APITimeout parses Timeout, falling back to the default on empty or bad input
func (c *Config) APITimeout() time.Duration {
	return parseDuration(c.Timeout, DefaultAPITimeout)
}

// ImageFetchTimeout parses ImageTimeout, falling back to the default
func (c *Config) ImageFetchTimeout() time.Duration {
	return parseDuration(c.ImageTimeout, DefaultImageTimeout)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoadConfig loads configuration from path, or searches the default locations
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	cfg, found, err := findConfig(".")
	if err != nil || found {
		return cfg, err
	}

	if home, err := os.UserHomeDir(); err == nil {
		homePath := filepath.Join(home, ".imgapi.yaml")
		if _, err := os.Stat(homePath); err == nil {
			return loadConfigFromFile(homePath)
		}
	}

	return DefaultConfig(), nil
}

func findConfig(dir string) (*Config, bool, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			cfg, err := loadConfigFromFile(configPath)
			return cfg, true, err
		}
	}
	return nil, false, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := fileCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return DefaultConfig().Merge(&fileCfg), nil
}

// Validate checks enumerated fields
func (c *Config) Validate() error {
	if c.Method != "" {
		switch strings.ToUpper(c.Method) {
		case "GET", "POST":
		default:
			return fmt.Errorf("method must be GET or POST, got %q", c.Method)
		}
	}
	if c.Variant != "" && c.Variant != string(model.VariantGeneric) && c.Variant != string(model.VariantFixed) {
		return fmt.Errorf("variant must be generic or fixed, got %q", c.Variant)
	}
	if c.Encoding != "" && c.Encoding != string(model.EncodingForm) && c.Encoding != string(model.EncodingJSON) {
		return fmt.Errorf("encoding must be form or json, got %q", c.Encoding)
	}
	if c.DefaultProject != "" && len(c.Projects) > 0 && !c.HasProject(c.DefaultProject) {
		return fmt.Errorf("defaultProject %q is not listed in projects", c.DefaultProject)
	}
	return nil
}

// HasProject reports whether id is allowed. An empty Projects list allows any id.
func (c *Config) HasProject(id string) bool {
	if len(c.Projects) == 0 {
		return true
	}
	for _, p := range c.Projects {
		if p == id {
			return true
		}
	}
	return false
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Endpoint != "" {
		result.Endpoint = other.Endpoint
	}
	if other.Method != "" {
		result.Method = strings.ToUpper(other.Method)
	}
	if other.Variant != "" {
		result.Variant = other.Variant
	}
	if other.Encoding != "" {
		result.Encoding = other.Encoding
	}
	if len(other.Projects) > 0 {
		result.Projects = other.Projects
	}
	if other.DefaultProject != "" {
		result.DefaultProject = other.DefaultProject
	}
	if other.Timeout != "" {
		result.Timeout = other.Timeout
	}
	if other.ImageTimeout != "" {
		result.ImageTimeout = other.ImageTimeout
	}
	if other.ExportDir != "" {
		result.ExportDir = other.ExportDir
	}
	if other.UserAgent != "" {
		result.UserAgent = other.UserAgent
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if len(other.Params) > 0 {
		result.Params = other.Params
	}

	if len(other.Aliases) > 0 {
		merged := make(map[string]string, len(result.Aliases)+len(other.Aliases))
		for k, v := range result.Aliases {
			merged[k] = v
		}
		for k, v := range other.Aliases {
			merged[k] = v
		}
		result.Aliases = merged
	}

	return &result
}

// ResolveAlias resolves URL aliases to their full URLs.
// If the URL starts with http:// or https://, it's returned as-is.
// Otherwise the first path segment is looked up in Aliases.
func (c *Config) ResolveAlias(url string) string {
	if url == "" || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}

	aliasName, path := url, ""
	if idx := strings.Index(url, "/"); idx != -1 {
		aliasName = url[:idx]
		path = url[idx+1:]
	}

	baseURL, exists := c.Aliases[aliasName]
	if !exists {
		return url
	}

	baseURL = strings.TrimSuffix(baseURL, "/")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		return baseURL
	}
	return baseURL + "/" + path
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
