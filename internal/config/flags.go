package config

import "flag"

// parseFlags defines and parses CLI flags. Flags default to the values
// already loaded so only explicitly set flags change the config.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	if fs == nil {
		fs = flag.NewFlagSet("tasklist", flag.ContinueOnError)
	}

	// Paths
	fs.StringVar(&cfg.File, "file", cfg.File, "Task list file to open")
	fs.StringVar(&cfg.SchemaFile, "schema", cfg.SchemaFile, "Schema file replacing the built-in one")

	// Saving
	fs.StringVar(&cfg.DownloadDir, "download-dir", cfg.DownloadDir, "Directory for downloads when no picker is used")
	fs.StringVar(&cfg.DefaultName, "default-name", cfg.DefaultName, "File name for downloads")
	fs.StringVar(&cfg.Picker, "picker", cfg.Picker, "File picker mode (auto|none)")
	fs.StringVar(&cfg.StartDir, "start-dir", cfg.StartDir, "Directory the file picker opens in")

	// Logging
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Log directory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text|json|logfmt)")
	fs.BoolVar(&cfg.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Include timestamps in logs")
	fs.BoolVar(&cfg.LogCaller, "log-caller", cfg.LogCaller, "Include caller in logs")

	return fs.Parse(args)
}
