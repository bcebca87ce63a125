// Package config loads and persists application settings, including the
// cached API key, so later invocations may omit them on the command line.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configDirectoryName = "press"
	configFileName      = "config.yaml"

	apiKeySettingName          = "api_key"
	chunkSizeSettingName       = "chunk_size"
	retriesSettingName         = "retries"
	outputDirectorySettingName = "output_directory"
	systemPromptSettingName    = "system_prompt"
	temperatureSettingName     = "temperature"
	logLevelSettingName        = "log_level"

	// DefaultChunkSize is the chunk size, in lines, applied when unset.
	DefaultChunkSize = 50
	// DefaultRetries is the retry budget applied when unset.
	DefaultRetries = 3
	// DefaultOutputDirectory receives parsed files when unset.
	DefaultOutputDirectory = "./"
	// DefaultSystemPrompt is sent when the user supplies none.
	DefaultSystemPrompt = "You are a helpful assistant"
	// DefaultTemperature is the sampling temperature applied when unset.
	DefaultTemperature = 0.0
	// DefaultLogLevel is the logging level applied when unset.
	DefaultLogLevel = "info"
)

// Settings holds every persisted configuration value.
type Settings struct {
	APIKey          string  `mapstructure:"api_key"`
	ChunkSize       int     `mapstructure:"chunk_size"`
	Retries         int     `mapstructure:"retries"`
	OutputDirectory string  `mapstructure:"output_directory"`
	SystemPrompt    string  `mapstructure:"system_prompt"`
	Temperature     float64 `mapstructure:"temperature"`
	LogLevel        string  `mapstructure:"log_level"`
}

// DefaultSettings returns the settings applied before any file is read.
func DefaultSettings() Settings {
	return Settings{
		ChunkSize:       DefaultChunkSize,
		Retries:         DefaultRetries,
		OutputDirectory: DefaultOutputDirectory,
		SystemPrompt:    DefaultSystemPrompt,
		Temperature:     DefaultTemperature,
		LogLevel:        DefaultLogLevel,
	}
}

// Path resolves the configuration file location in the user config directory.
func Path() (string, error) {
	configDirectory, configDirectoryError := os.UserConfigDir()
	if configDirectoryError != nil {
		return "", fmt.Errorf("determine user config directory: %w", configDirectoryError)
	}
	return filepath.Join(configDirectory, configDirectoryName, configFileName), nil
}

// Load reads settings from the given file, applying defaults for anything
// unset. A missing file yields the defaults without error.
func Load(configFilePath string) (Settings, error) {
	reader := viper.New()
	reader.SetConfigFile(configFilePath)
	reader.SetConfigType("yaml")
	applyDefaults(reader)

	if readError := reader.ReadInConfig(); readError != nil {
		if _, isMissing := readError.(viper.ConfigFileNotFoundError); !isMissing && !os.IsNotExist(readError) {
			return Settings{}, fmt.Errorf("read configuration from %s: %w", configFilePath, readError)
		}
	}

	var settings Settings
	if decodeError := reader.Unmarshal(&settings); decodeError != nil {
		return Settings{}, fmt.Errorf("decode configuration from %s: %w", configFilePath, decodeError)
	}
	return settings, nil
}

// Save writes settings to the given file, creating parent directories as
// needed.
func Save(configFilePath string, settings Settings) error {
	if makeDirectoryError := os.MkdirAll(filepath.Dir(configFilePath), 0o755); makeDirectoryError != nil {
		return fmt.Errorf("create configuration directory: %w", makeDirectoryError)
	}
	writer := viper.New()
	writer.SetConfigFile(configFilePath)
	writer.SetConfigType("yaml")
	writer.Set(apiKeySettingName, settings.APIKey)
	writer.Set(chunkSizeSettingName, settings.ChunkSize)
	writer.Set(retriesSettingName, settings.Retries)
	writer.Set(outputDirectorySettingName, settings.OutputDirectory)
	writer.Set(systemPromptSettingName, settings.SystemPrompt)
	writer.Set(temperatureSettingName, settings.Temperature)
	writer.Set(logLevelSettingName, settings.LogLevel)
	if writeError := writer.WriteConfigAs(configFilePath); writeError != nil {
		return fmt.Errorf("write configuration to %s: %w", configFilePath, writeError)
	}
	return nil
}

// applyDefaults registers the default value of every setting.
func applyDefaults(reader *viper.Viper) {
	defaults := DefaultSettings()
	reader.SetDefault(apiKeySettingName, defaults.APIKey)
	reader.SetDefault(chunkSizeSettingName, defaults.ChunkSize)
	reader.SetDefault(retriesSettingName, defaults.Retries)
	reader.SetDefault(outputDirectorySettingName, defaults.OutputDirectory)
	reader.SetDefault(systemPromptSettingName, defaults.SystemPrompt)
	reader.SetDefault(temperatureSettingName, defaults.Temperature)
	reader.SetDefault(logLevelSettingName, defaults.LogLevel)
}
