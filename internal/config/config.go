// Package config resolves zotkit settings from the environment and the
// global config file.
//
// Precedence: environment variables win over the config file. A .env file
// in the working directory is loaded first so local development setups work
// without exporting anything.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matsen/zotkit/internal/zotero"
)

// Environment variable names.
const (
	EnvAPIKey       = "ZOTERO_API_KEY"
	EnvUserID       = "ZOTERO_USER_ID"
	EnvGroupID      = "ZOTERO_GROUP_ID"
	EnvTranslateURL = "ZOTERO_TRANSLATE_URL"
	EnvCacheDir     = "ZOTKIT_CACHE_DIR"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "zotkit"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// Errors returned by Load.
var (
	ErrNoAPIKey  = errors.New("no Zotero API key configured (set ZOTERO_API_KEY)")
	ErrNoLibrary = errors.New("no Zotero library configured (set ZOTERO_USER_ID or ZOTERO_GROUP_ID)")
)

// Config is the resolved zotkit configuration.
type Config struct {
	APIKey       string `yaml:"api_key,omitempty"`
	UserID       string `yaml:"user_id,omitempty"`
	GroupID      string `yaml:"group_id,omitempty"`
	TranslateURL string `yaml:"translate_url,omitempty"`
	CacheDir     string `yaml:"cache_dir,omitempty"`
}

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/zotkit/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// Load resolves the configuration: .env file, then the global config file,
// then environment variables on top. A missing .env or config file is not
// an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvUserID); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv(EnvGroupID); v != "" {
		cfg.GroupID = v
	}
	if v := os.Getenv(EnvTranslateURL); v != "" {
		cfg.TranslateURL = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.CacheDir = v
	}

	return cfg, nil
}

// Validate checks that the config can serve a library client.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.UserID == "" && c.GroupID == "" {
		return ErrNoLibrary
	}
	return nil
}

// Library returns the library identity the config selects. A configured
// group takes precedence over the personal library.
func (c *Config) Library() zotero.Library {
	if c.GroupID != "" {
		return zotero.Library{Type: zotero.LibraryGroup, ID: c.GroupID}
	}
	return zotero.Library{Type: zotero.LibraryUser, ID: c.UserID}
}
