package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// expandPaths expands every path setting. Directories the editor browses or
// writes into are made absolute against workDir so the picker and download
// notices show stable locations.
func expandPaths(cfg *Config, workDir string) {
	cfg.File = expandPath(cfg.File)
	cfg.SchemaFile = expandPath(cfg.SchemaFile)
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.DownloadDir = absUnder(workDir, expandPath(cfg.DownloadDir))
	cfg.StartDir = absUnder(workDir, expandPath(cfg.StartDir))
	if cfg.StartDir == "" {
		cfg.StartDir = workDir
	}
}

func absUnder(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// expandPath expands environment variables and a leading ~. On Windows it
// also accepts ~\ and %VAR%.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if runtime.GOOS == "windows" {
		p = expandPercentVars(p)
	}

	rest, ok := cutHome(p)
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if rest == "" {
		return home
	}
	return filepath.Join(home, rest)
}

// cutHome reports whether p starts with the home shorthand and returns what
// follows it.
func cutHome(p string) (string, bool) {
	if p == "~" {
		return "", true
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return rest, true
	}
	if runtime.GOOS == "windows" {
		if rest, ok := strings.CutPrefix(p, `~\`); ok {
			return rest, true
		}
	}
	return "", false
}

// expandPercentVars replaces %NAME% with the value of NAME. Unknown names
// and a lone % are kept as written.
func expandPercentVars(p string) string {
	var b strings.Builder
	for {
		before, after, found := strings.Cut(p, "%")
		b.WriteString(before)
		if !found {
			return b.String()
		}
		name, tail, closed := strings.Cut(after, "%")
		switch {
		case !closed:
			b.WriteString("%" + after)
			return b.String()
		case name == "":
			// "%%" keeps one % and rescans from the second.
			b.WriteByte('%')
			p = after
			continue
		}
		if val, ok := os.LookupEnv(name); ok {
			b.WriteString(val)
		} else {
			b.WriteString("%" + name + "%")
		}
		p = tail
	}
}
