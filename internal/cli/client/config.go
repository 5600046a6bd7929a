package client

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	envAPIURL     = "DOCQA_API_URL"
	defaultAPIURL = "http://localhost:8080"
)

// GlobalConfig is the client state stored in config.yaml
type GlobalConfig struct {
	APIURL    string `yaml:"api_url,omitempty"`
	SessionID string `yaml:"session_id,omitempty"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "docqa"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.yaml file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads config.yaml. A missing file yields an empty config.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return &GlobalConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config to config.yaml with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// configKeys maps the settable keys to their fields
var configKeys = map[string]func(c *GlobalConfig) *string{
	"api_url":    func(c *GlobalConfig) *string { return &c.APIURL },
	"session_id": func(c *GlobalConfig) *string { return &c.SessionID },
}

// ConfigKeys lists the keys accepted by Set and Get
func ConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns one key. An empty value clears it.
func (c *GlobalConfig) Set(key, value string) error {
	field, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(ConfigKeys(), ", "))
	}
	if key == "api_url" && value != "" {
		if err := validateAPIURL(value); err != nil {
			return err
		}
		value = strings.TrimRight(value, "/")
	}
	*field(c) = value
	return nil
}

// Get returns the value of one key
func (c *GlobalConfig) Get(key string) (string, error) {
	field, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(ConfigKeys(), ", "))
	}
	return *field(c), nil
}

func validateAPIURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api_url %q: expected http(s)://host[:port]", raw)
	}
	return nil
}

// URLSource represents where the API URL came from
type URLSource string

const (
	SourceFlag         URLSource = "flag"
	SourceEnv          URLSource = "env"
	SourceGlobalConfig URLSource = "global_config"
	SourceDefault      URLSource = "default"
)

// ResolveAPIURL applies the cascade flag -> env -> config file -> default.
func ResolveAPIURL(flagURL string) (URLSource, string, error) {
	if flagURL != "" {
		return SourceFlag, strings.TrimRight(flagURL, "/"), nil
	}

	if envURL := os.Getenv(envAPIURL); envURL != "" {
		return SourceEnv, strings.TrimRight(envURL, "/"), nil
	}

	config, err := LoadGlobalConfig()
	if err != nil {
		return SourceDefault, defaultAPIURL, err
	}
	if config.APIURL != "" {
		return SourceGlobalConfig, config.APIURL, nil
	}

	return SourceDefault, defaultAPIURL, nil
}
