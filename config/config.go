package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is read from an optional TOML file; the environment variables
// DEBUG, DEBUG_SAVE_BINARY, DEBUG_SAVE_JSON, GVAS_LOG_LEVEL and
// GVAS_DUMP_DIR override it.
type Config struct {
	Debug      bool   `toml:"debug"`
	Verify     bool   `toml:"verify"`
	SaveJSON   bool   `toml:"save_json"`
	SaveBinary bool   `toml:"save_binary"`
	DumpDir    string `toml:"dump_dir"`
	LogLevel   string `toml:"log_level"`
	// Hints maps "<property path>.Key|Value|Element" to a struct type name.
	Hints map[string]string `toml:"hints"`
}

func Default() Config {
	return Config{DumpDir: "debug", LogLevel: "info"}
}

// Load reads path when it is not empty and applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("config: unknown keys in %s: %v", path, undecoded)
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if getenv("DEBUG") != "" {
		c.Debug = true
	}
	if getenv("DEBUG_SAVE_BINARY") != "" {
		c.SaveBinary = true
	}
	if getenv("DEBUG_SAVE_JSON") != "" {
		c.SaveJSON = true
	}
	if level := getenv("GVAS_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if dir := getenv("GVAS_DUMP_DIR"); dir != "" {
		c.DumpDir = dir
	}
}

// Level returns the slog level to log at. Debug forces LevelDebug.
func (c Config) Level() (slog.Level, error) {
	if c.Debug {
		return slog.LevelDebug, nil
	}
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, errors.Join(fmt.Errorf("config: bad log_level %q", c.LogLevel), err)
	}
	return level, nil
}
