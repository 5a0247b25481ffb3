package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# tasklist configuration file
# Values can be overridden by TASKLIST_* environment variables or CLI flags

# Task list opened at startup (optional)
# file = "~/notes/tareas.json"

# Schema replacing the built-in interchange schema (optional)
# schema_file = "tasks.schema.json"

# File picker: "auto" uses the picker and a destination prompt,
# "none" loads from a typed path and saves into download_dir
picker = "auto"

# Directory the picker opens in (defaults to the working directory)
# start_dir = "~/notes"

# Where saves go when picker = "none"
download_dir = "~/Downloads"

# File name used for those saves; " (1)", " (2)", ... avoid overwrites
default_name = "tareas.json"

# Log directory (supports ~ expansion and %VAR% on Windows)
log_dir = "~/.tasklist/logs"

# Log level: debug, info, warn, error
log_level = "info"

# Log format: text, json, logfmt
log_format = "text"

log_timestamps = true
log_caller = false
`
}
