package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/barnettlynn/nfctools/pkg/mifare"
)

type Config struct {
	Keys    KeysConfig    `yaml:"keys"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

type KeysConfig struct {
	DumpFile   string `yaml:"dump_file,omitempty"`
	KeyLogFile string `yaml:"key_log_file,omitempty"`
}

type RuntimeConfig struct {
	ReaderIndex   *int   `yaml:"reader_index,omitempty"`
	DumpCard      *bool  `yaml:"dump_card"`
	DumpMoney     *bool  `yaml:"dump_money"`
	UpdateMoney   string `yaml:"update_money,omitempty"`
	ConfirmWrites bool   `yaml:"confirm_writes,omitempty"`
	LogFile       string `yaml:"log_file,omitempty"`
}

func Load(fs afero.Fs, path string) (*Config, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the shape of the config only. Key files are not opened
// here: a missing or broken key file is reported when keys are loaded and
// leaves the tool running with an empty key store.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Keys.DumpFile) == "" && strings.TrimSpace(c.Keys.KeyLogFile) == "" {
		return fmt.Errorf("config.keys.dump_file or config.keys.key_log_file is required")
	}

	if c.Runtime.ReaderIndex != nil && *c.Runtime.ReaderIndex < 0 {
		return fmt.Errorf("config.runtime.reader_index must be >= 0")
	}
	if c.Runtime.DumpCard == nil {
		return fmt.Errorf("config.runtime.dump_card is required")
	}
	if c.Runtime.DumpMoney == nil {
		return fmt.Errorf("config.runtime.dump_money is required")
	}
	return nil
}

// KeySource returns the key file to load and its format. The binary dump
// wins when both are set.
func (c *Config) KeySource() (string, mifare.KeyFormat) {
	if strings.TrimSpace(c.Keys.DumpFile) != "" {
		return c.Keys.DumpFile, mifare.KeyFormatDump
	}
	return c.Keys.KeyLogFile, mifare.KeyFormatLog
}

// TargetCents returns the requested balance. ok is false when update_money
// is empty or not an integer; the latter is logged because the operator
// asked for an update that will not happen.
func (c *Config) TargetCents() (cents int, ok bool) {
	raw := strings.TrimSpace(c.Runtime.UpdateMoney)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("update_money is not an integer, money update disabled", "value", raw)
		return 0, false
	}
	if v < 0 || v > 0xFFFF {
		slog.Warn("update_money outside 0..65535, only the low 16 bits are written", "value", v)
	}
	return v, true
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.Keys.DumpFile = resolvePath(configDir, c.Keys.DumpFile)
	c.Keys.KeyLogFile = resolvePath(configDir, c.Keys.KeyLogFile)
	c.Runtime.LogFile = resolvePath(configDir, c.Runtime.LogFile)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}
