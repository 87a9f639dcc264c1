package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the assembler's ambient configuration, overridden by
// individual CLI flags at invocation time.
type Config struct {
	// Assembly settings
	Assembly struct {
		DefaultCPU      string `toml:"default_cpu"`
		CaseSensitive   bool   `toml:"case_sensitive"`
		DefaultRadix    int    `toml:"default_radix"`
		Autofill        bool   `toml:"autofill"`
		AutofillByte    byte   `toml:"autofill_byte"`
		MaxIncludeDepth int    `toml:"max_include_depth"`
	} `toml:"assembly"`

	// Listing settings
	Listing struct {
		PageLength  int  `toml:"page_length"`
		PageWidth   int  `toml:"page_width"`
		ShowSymbols bool `toml:"show_symbols"`
		SymbolMode  string `toml:"symbol_mode"` // off, on, full
	} `toml:"listing"`

	// Output settings
	Output struct {
		DefaultFormat string `toml:"default_format"` // bin, ihex, srec
		LineLength    int    `toml:"line_length"`     // not read: the encoder writes at most 32 bytes per IHEX/SREC record
	} `toml:"output"`

	// Diagnostics settings
	Diagnostics struct {
		Quiet       bool `toml:"quiet"`
		Verbose     bool `toml:"verbose"`
		WarningsOff bool `toml:"warnings_off"`
	} `toml:"diagnostics"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Assembly.DefaultCPU = "6502"
	cfg.Assembly.CaseSensitive = true
	cfg.Assembly.DefaultRadix = 10
	cfg.Assembly.Autofill = true
	cfg.Assembly.AutofillByte = 0xFF
	cfg.Assembly.MaxIncludeDepth = 16

	cfg.Listing.PageLength = 66
	cfg.Listing.PageWidth = 80
	cfg.Listing.ShowSymbols = true
	cfg.Listing.SymbolMode = "on"

	cfg.Output.DefaultFormat = "ihex"
	cfg.Output.LineLength = 32

	cfg.Diagnostics.Quiet = false
	cfg.Diagnostics.Verbose = false
	cfg.Diagnostics.WarningsOff = false

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "vasm")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "vasm.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "vasm")

	default:
		return "vasm.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "vasm.toml"
	}

	return filepath.Join(configDir, "vasm.toml")
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file. A missing file is
// not an error: it yields the default configuration.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
