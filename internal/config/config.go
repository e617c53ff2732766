package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Detector  DetectorConfig  `json:"detector"`
	Alignment AlignmentConfig `json:"alignment"`
	Export    ExportConfig    `json:"export"`
	Output    OutputConfig    `json:"output"`
}

// DetectorConfig holds configuration for the pose detection backend
type DetectorConfig struct {
	Backend     string `json:"backend"`
	URL         string `json:"url"`
	Model       string `json:"model"`
	SendFormat  string `json:"send_format"`
	SendMaxDim  int    `json:"send_max_dim"`
	SendQuality int    `json:"send_quality"`
}

// AlignmentConfig holds configuration for the alignment estimator
type AlignmentConfig struct {
	VisibilityThreshold float64 `json:"visibility_threshold"`
	MinScale            float64 `json:"min_scale"`
	MaxScale            float64 `json:"max_scale"`
	DefaultAnchor       string  `json:"default_anchor"`
}

// ExportConfig holds configuration for the output panel geometry
type ExportConfig struct {
	Ratio    string `json:"ratio"`
	BaseSize int    `json:"base_size"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
	Lossless bool   `json:"lossless"`
	Dir      string `json:"dir"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:     "llamacpp",
			URL:         "",
			Model:       "openbmb/minicpm-v4.5",
			SendFormat:  "jpg",
			SendMaxDim:  1536,
			SendQuality: 85,
		},
		Alignment: AlignmentConfig{
			VisibilityThreshold: 0.5,
			MinScale:            0.5,
			MaxScale:            2.0,
			DefaultAnchor:       "shoulders",
		},
		Export: ExportConfig{
			Ratio:    "square",
			BaseSize: 1080,
		},
		Output: OutputConfig{
			Format:   "jpg",
			Quality:  90,
			Lossless: false,
			Dir:      "./out",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Detector.Backend != "ollama" && c.Detector.Backend != "llamacpp" {
		return fmt.Errorf("detector.backend must be 'ollama' or 'llamacpp'")
	}

	if c.Detector.SendQuality < 1 || c.Detector.SendQuality > 100 {
		return fmt.Errorf("detector.send_quality must be between 1 and 100")
	}

	if c.Alignment.VisibilityThreshold < 0 || c.Alignment.VisibilityThreshold > 1 {
		return fmt.Errorf("alignment.visibility_threshold must be between 0 and 1")
	}

	if c.Alignment.MinScale <= 0 || c.Alignment.MaxScale < c.Alignment.MinScale {
		return fmt.Errorf("alignment scale bounds must satisfy 0 < min_scale <= max_scale")
	}

	if c.Export.BaseSize < 1 {
		return fmt.Errorf("export.base_size must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "poseproof", "config.json")
}
