package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Assembly.DefaultCPU != "6502" {
		t.Errorf("Expected DefaultCPU=6502, got %s", cfg.Assembly.DefaultCPU)
	}
	if !cfg.Assembly.CaseSensitive {
		t.Error("Expected CaseSensitive=true")
	}
	if cfg.Assembly.DefaultRadix != 10 {
		t.Errorf("Expected DefaultRadix=10, got %d", cfg.Assembly.DefaultRadix)
	}
	if cfg.Listing.PageLength != 66 {
		t.Errorf("Expected PageLength=66, got %d", cfg.Listing.PageLength)
	}
	if cfg.Output.DefaultFormat != "ihex" {
		t.Errorf("Expected DefaultFormat=ihex, got %s", cfg.Output.DefaultFormat)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()
	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "vasm.toml" {
		t.Errorf("Expected path to end with vasm.toml, got %s", path)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Assembly.DefaultCPU = "6809"
	cfg.Assembly.CaseSensitive = false
	cfg.Listing.PageLength = 60

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Assembly.DefaultCPU != "6809" {
		t.Errorf("Expected DefaultCPU=6809, got %s", loaded.Assembly.DefaultCPU)
	}
	if loaded.Assembly.CaseSensitive {
		t.Error("Expected CaseSensitive=false")
	}
	if loaded.Listing.PageLength != 60 {
		t.Errorf("Expected PageLength=60, got %d", loaded.Listing.PageLength)
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}
	if cfg.Assembly.DefaultCPU != "6502" {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[assembly]
default_radix = "not a number"
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if _, err := LoadFrom(configPath); err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}
