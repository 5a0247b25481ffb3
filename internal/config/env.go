package config

import "os"

// loadFromEnv overrides config from TASKLIST_* environment variables.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("TASKLIST_FILE"); v != "" {
		cfg.File = v
	}
	if v := os.Getenv("TASKLIST_SCHEMA"); v != "" {
		cfg.SchemaFile = v
	}
	if v := os.Getenv("TASKLIST_DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDir = v
	}
	if v := os.Getenv("TASKLIST_DEFAULT_NAME"); v != "" {
		cfg.DefaultName = v
	}
	if v := os.Getenv("TASKLIST_PICKER"); v != "" {
		cfg.Picker = v
	}
	if v := os.Getenv("TASKLIST_START_DIR"); v != "" {
		cfg.StartDir = v
	}

	// Logging configuration
	if v := os.Getenv("TASKLIST_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("TASKLIST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKLIST_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("TASKLIST_LOG_TIMESTAMPS"); v != "" {
		cfg.LogTimestamps = boolFromString(v)
	}
	if v := os.Getenv("TASKLIST_LOG_CALLER"); v != "" {
		cfg.LogCaller = boolFromString(v)
	}
}
