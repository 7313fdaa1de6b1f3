package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"KEEVAL_DATA_FILE":        "/env/data.json",
				"KEEVAL_LISTEN":           ":7000",
				"KEEVAL_REPLAY":           "false",
				"KEEVAL_SYNC":             "0",
				"KEEVAL_STRICT_COMMANDS":  "true",
				"KEEVAL_MAX_BODY_BYTES":   "4096",
				"KEEVAL_SHUTDOWN_TIMEOUT": "1m",
				"KEEVAL_LOG_LEVEL":        "error",
				"KEEVAL_LOG_FILE":         "/env/keeval.log",
				"KEEVAL_WATCH_CONFIG":     "1",
			},
			changed: map[string]bool{},
			initial: DefaultConfig(),
			expected: Config{
				DataFile:        "/env/data.json",
				Listen:          ":7000",
				Replay:          false,
				Sync:            false,
				StrictCommands:  true,
				MaxBodyBytes:    4096,
				ShutdownTimeout: time.Minute,
				LogLevel:        "error",
				LogFile:         "/env/keeval.log",
				WatchConfig:     true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"KEEVAL_DATA_FILE": "/env/data.json",
				"KEEVAL_LISTEN":    ":7000",
			},
			changed: map[string]bool{"data-file": true},
			initial: Config{
				DataFile: "/flag/data.json",
			},
			expected: Config{
				DataFile: "/flag/data.json",
				Listen:   ":7000",
			},
		},
		{
			name: "unset vars keep defaults",
			envVars: map[string]string{
				"KEEVAL_SYNC": "",
			},
			changed:  map[string]bool{},
			initial:  DefaultConfig(),
			expected: DefaultConfig(),
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"KEEVAL_SHUTDOWN_TIMEOUT": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid int",
			envVars: map[string]string{
				"KEEVAL_MAX_BODY_BYTES": "lots",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid bool",
			envVars: map[string]string{
				"KEEVAL_REPLAY": "sometimes",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyEnvConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyEnvConfig() unexpected error: %v", err)
				return
			}
			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
