package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// Booleans are pointers so an absent key leaves the default alone.
type FileConfig struct {
	DataFile       string `toml:"data_file"`
	Replay         *bool  `toml:"replay"`
	Sync           *bool  `toml:"sync"`
	StrictCommands *bool  `toml:"strict_commands"`

	Listen          string `toml:"listen"`
	MaxBodyBytes    int    `toml:"max_body_bytes"`
	ShutdownTimeout string `toml:"shutdown_timeout"`

	LogLevel    string `toml:"log_level"`
	LogFile     string `toml:"log_file"`
	WatchConfig *bool  `toml:"watch_config"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.keeval/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".keeval", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("data-file", fc.DataFile, &cfg.DataFile)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)

	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setInt("max-body-bytes", fc.MaxBodyBytes, &cfg.MaxBodyBytes)

	s.setBool("replay", fc.Replay, &cfg.Replay)
	s.setBool("sync", fc.Sync, &cfg.Sync)
	s.setBool("strict-commands", fc.StrictCommands, &cfg.StrictCommands)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
