package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds a recognizer's model/session configuration, corresponding
// directly to the string->string configuration keys a session's init call
// accepts: fst, nnet, prior, left_context, right_context, chunk_size,
// num_pdfs, tid2pdf, symbol_table, large_lm, original_lm, cmvn_stats,
// enable_cmvn, beam, am_scale, log_level.
type Config struct {
	FST          string `yaml:"fst"`
	Nnet         string `yaml:"nnet"`
	Prior        string `yaml:"prior"`
	LeftContext  int    `yaml:"left_context"`
	RightContext int    `yaml:"right_context"`
	ChunkSize    int    `yaml:"chunk_size"`
	NumPdfs      int    `yaml:"num_pdfs"`
	Tid2Pdf      string `yaml:"tid2pdf"`
	SymbolTable  string `yaml:"symbol_table"`

	// LargeLM and OriginalLM are optional: either both are set (enabling
	// on-the-fly delta-LM composition) or neither is.
	LargeLM    string `yaml:"large_lm"`
	OriginalLM string `yaml:"original_lm"`

	// EnableCmvn turns the sliding-window CMVN stage on or off; CmvnStats
	// names the global stats used for its smoothing fallback. Both optional.
	CmvnStats  string `yaml:"cmvn_stats"`
	EnableCmvn *bool  `yaml:"enable_cmvn"`

	Beam     float64 `yaml:"beam"`
	AmScale  float64 `yaml:"am_scale"`
	LogLevel string  `yaml:"log_level"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pocketasr")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values. Model paths are
// left empty: a recognizer has no usable default model, unlike log_level
// or beam width, which do have reasonable defaults.
func Default() *Config {
	enableCmvn := true
	return &Config{
		LeftContext:  0,
		RightContext: 0,
		ChunkSize:    1,
		Beam:         16.0,
		AmScale:      0.1,
		EnableCmvn:   &enableCmvn,
		LogLevel:     "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults. Tildes in path-valued fields are expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.FST = expandTilde(cfg.FST)
	cfg.Nnet = expandTilde(cfg.Nnet)
	cfg.Prior = expandTilde(cfg.Prior)
	cfg.Tid2Pdf = expandTilde(cfg.Tid2Pdf)
	cfg.SymbolTable = expandTilde(cfg.SymbolTable)
	cfg.LargeLM = expandTilde(cfg.LargeLM)
	cfg.OriginalLM = expandTilde(cfg.OriginalLM)
	cfg.CmvnStats = expandTilde(cfg.CmvnStats)

	return cfg, nil
}

// Validate checks the config for invalid or inconsistent values.
func (c *Config) Validate() error {
	for _, req := range []struct{ name, val string }{
		{"fst", c.FST},
		{"nnet", c.Nnet},
		{"prior", c.Prior},
		{"tid2pdf", c.Tid2Pdf},
		{"symbol_table", c.SymbolTable},
	} {
		if req.val == "" {
			return fmt.Errorf("%s must not be empty", req.name)
		}
	}

	if c.LeftContext < 0 || c.RightContext < 0 {
		return fmt.Errorf("left_context and right_context must be >= 0")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0")
	}
	if c.NumPdfs <= 0 {
		return fmt.Errorf("num_pdfs must be > 0")
	}
	if c.Beam <= 0 {
		return fmt.Errorf("beam must be > 0")
	}

	if (c.LargeLM == "") != (c.OriginalLM == "") {
		return fmt.Errorf("large_lm and original_lm must be set together or not at all")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
