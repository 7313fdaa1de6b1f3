package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (KEEVAL_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("data-file", os.Getenv("KEEVAL_DATA_FILE"), &cfg.DataFile)
	s.setString("listen", os.Getenv("KEEVAL_LISTEN"), &cfg.Listen)
	s.setString("log-level", os.Getenv("KEEVAL_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-file", os.Getenv("KEEVAL_LOG_FILE"), &cfg.LogFile)

	if err := s.setDuration("shutdown-timeout", os.Getenv("KEEVAL_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setIntFromString("max-body-bytes", os.Getenv("KEEVAL_MAX_BODY_BYTES"), &cfg.MaxBodyBytes); err != nil {
		return err
	}

	for _, b := range []struct {
		flag, env string
		dst       *bool
	}{
		{"replay", "KEEVAL_REPLAY", &cfg.Replay},
		{"sync", "KEEVAL_SYNC", &cfg.Sync},
		{"strict-commands", "KEEVAL_STRICT_COMMANDS", &cfg.StrictCommands},
		{"watch-config", "KEEVAL_WATCH_CONFIG", &cfg.WatchConfig},
	} {
		if err := s.setBoolFromString(b.flag, os.Getenv(b.env), b.dst); err != nil {
			return err
		}
	}

	return nil
}
