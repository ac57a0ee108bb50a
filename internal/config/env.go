package config

import "os"

// Environment variable names for overrides. Environment wins over the
// config file; CLI flags win over both.
const (
	EnvConfig     = "QUARKSHARE_CONFIG"
	EnvListenAddr = "QUARKSHARE_LISTEN_ADDR"
	EnvLogLevel   = "QUARKSHARE_LOG_LEVEL"
	EnvLogFormat  = "QUARKSHARE_LOG_FORMAT"
)

// ApplyEnvOverrides mutates cfg with any overrides present in the
// environment. The config file path override (EnvConfig) is read by
// the CLI layer before loading.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.ListenAddr = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
	}
}
