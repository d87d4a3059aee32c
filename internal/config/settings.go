package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/okanoue/manga-downloader/internal/model"
)

// Output formats a finished chapter can be assembled into.
const (
	FormatPDF  = "pdf"
	FormatCBZ  = "cbz"
	FormatNone = "none"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadDir           string        `json:"download_dir" mapstructure:"download_dir"`
	MaxConcurrentChapters int           `json:"max_concurrent_chapters" mapstructure:"max_concurrent_chapters"`
	MaxConcurrentPages    int           `json:"max_concurrent_pages" mapstructure:"max_concurrent_pages"`
	GlobalConnectionLimit int           `json:"global_connection_limit" mapstructure:"global_connection_limit"`
	MaxRetries            int           `json:"max_retries" mapstructure:"max_retries"`
	RetryCooldown         time.Duration `json:"retry_cooldown" mapstructure:"retry_cooldown"`
	RequestTimeout        time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	RequestDelay          time.Duration `json:"request_delay" mapstructure:"request_delay"`

	// Output settings
	Format     string `json:"format" mapstructure:"format"` // pdf, cbz, none
	KeepImages bool   `json:"keep_images" mapstructure:"keep_images"`
	Sort       string `json:"sort" mapstructure:"sort"` // asc, desc

	// File naming
	ChapterDirFormat     string `json:"chapter_dir_format" mapstructure:"chapter_dir_format"`
	OutputFileNameFormat string `json:"output_file_name_format" mapstructure:"output_file_name_format"`

	// Image settings
	MaxImageHeight int `json:"max_image_height" mapstructure:"max_image_height"`

	// Logging
	LogFile string `json:"log_file" mapstructure:"log_file"`
	Verbose bool   `json:"verbose" mapstructure:"verbose"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadDir:           filepath.Join(homeDir, "Manga"),
		MaxConcurrentChapters: 2,
		MaxConcurrentPages:    4,
		GlobalConnectionLimit: 8,
		MaxRetries:            3,
		RetryCooldown:         2 * time.Second,
		RequestTimeout:        30 * time.Second,
		RequestDelay:          time.Second,

		Format:     FormatPDF,
		KeepImages: false,
		Sort:       "desc",

		ChapterDirFormat:     "{series}/c{chapter}",
		OutputFileNameFormat: "{series}_c{chapter}",

		MaxImageHeight: 0,

		LogFile: "",
		Verbose: false,
	}
}

// Load builds settings from defaults, an optional JSON config file and
// MANGADL_-prefixed environment variables, in increasing precedence.
//
// A missing config file is not an error; cfgFile == "" looks for
// config.json in the working directory and ~/.manga-dl.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()

	defaults := DefaultSettings()
	v.SetDefault("download_dir", defaults.DownloadDir)
	v.SetDefault("max_concurrent_chapters", defaults.MaxConcurrentChapters)
	v.SetDefault("max_concurrent_pages", defaults.MaxConcurrentPages)
	v.SetDefault("global_connection_limit", defaults.GlobalConnectionLimit)
	v.SetDefault("max_retries", defaults.MaxRetries)
	v.SetDefault("retry_cooldown", defaults.RetryCooldown)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("request_delay", defaults.RequestDelay)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("keep_images", defaults.KeepImages)
	v.SetDefault("sort", defaults.Sort)
	v.SetDefault("chapter_dir_format", defaults.ChapterDirFormat)
	v.SetDefault("output_file_name_format", defaults.OutputFileNameFormat)
	v.SetDefault("max_image_height", defaults.MaxImageHeight)
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("verbose", defaults.Verbose)

	v.SetEnvPrefix("MANGADL")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.manga-dl")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

// Validate checks value ranges and normalizes the concurrency knobs so
// the per-level limits never exceed the global connection ceiling.
func (s *Settings) Validate() error {
	switch s.Format {
	case FormatPDF, FormatCBZ, FormatNone:
	default:
		return fmt.Errorf("invalid format %q (expected pdf, cbz or none)", s.Format)
	}

	if _, err := model.ParseSortOrder(s.Sort); err != nil {
		return err
	}

	if s.MaxConcurrentChapters < 1 {
		s.MaxConcurrentChapters = 1
	}
	if s.MaxConcurrentPages < 1 {
		s.MaxConcurrentPages = 1
	}
	if s.GlobalConnectionLimit < 1 {
		s.GlobalConnectionLimit = s.MaxConcurrentChapters * s.MaxConcurrentPages
	}
	if s.MaxRetries < 1 {
		s.MaxRetries = 1
	}
	if s.RetryCooldown < 0 {
		s.RetryCooldown = 0
	}
	if s.RequestDelay < 0 {
		s.RequestDelay = 0
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 30 * time.Second
	}

	return nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SortOrder returns the parsed form of the Sort field.
func (s *Settings) SortOrder() model.SortOrder {
	order, _ := model.ParseSortOrder(s.Sort)
	return order
}

// ToPathConfig converts settings to PathConfig.
func (s *Settings) ToPathConfig() *model.PathConfig {
	return &model.PathConfig{
		DownloadDir:          s.DownloadDir,
		ChapterDirFormat:     s.ChapterDirFormat,
		OutputFileNameFormat: s.OutputFileNameFormat,
	}
}
