package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/era/internal/paths"
	"github.com/mesh-intelligence/era/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend     = "backend"
	cfgKeyDataDir     = "data_dir"
	cfgKeyContentDirs = "content_dirs"
	cfgKeyArrayTags   = "array_tags"
	cfgKeyHTTPAddr    = "http_addr"

	defaultHTTPAddr = "127.0.0.1:7474"
)

// configFile is the structure init writes to config.yaml.
type configFile struct {
	Backend     string   `yaml:"backend"`
	DataDir     string   `yaml:"data_dir,omitempty"`
	ContentDirs []string `yaml:"content_dirs,omitempty"`
	ArrayTags   []string `yaml:"array_tags,omitempty"`
	HTTPAddr    string   `yaml:"http_addr"`
}

// loadConfig reads config.yaml from configDir. A missing file is not an
// error; defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyHTTPAddr, defaultHTTPAddr)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml with cfg. An existing file is
// left alone.
func writeConfigIfMissing(configDir string, cfg configFile) (bool, error) {
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{
		Backend: a.cfg.GetString(cfgKeyBackend),
		DataDir: dataDir,
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (a *app) contentDirs(args []string) ([]string, error) {
	return paths.ResolveContentDirs(args, a.cfg.GetStringSlice(cfgKeyContentDirs))
}

func (a *app) arrayTags() []string {
	return a.cfg.GetStringSlice(cfgKeyArrayTags)
}
