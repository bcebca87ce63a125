package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/presshq/press/internal/config"
	"github.com/presshq/press/internal/utils"
)

const (
	configUse              = "config"
	configShortDescription = "manage persisted configuration options"
	configLongDescription  = `Set persisted defaults for later runs. Values are stored in the user
configuration directory and applied whenever the matching flag is omitted.`

	setChunkSizeFlagName       = "set-chunk-size"
	setLogLevelFlagName        = "set-log-level"
	setOutputDirectoryFlagName = "set-output-directory"
	setRetriesFlagName         = "set-retries"
	setAPIKeyFlagName          = "set-api-key"
	setSystemPromptFlagName    = "set-system-prompt"
	setTemperatureFlagName     = "set-temperature"

	settingUpdatedLogFormat    = "%s set to %v\n"
	apiKeyUpdatedMessage       = "API key set\n"
	noSettingsChangedMessage   = "nothing to set; see --help for the available options\n"
	errorNegativeSettingFormat = "%s must not be negative"
)

// createConfigCommand returns the config subcommand.
func createConfigCommand() *cobra.Command {
	var chunkSize int
	var logLevel string
	var outputDirectory string
	var retries int
	var apiKey string
	var systemPrompt string
	var temperature float64

	configCommand := &cobra.Command{
		Use:   configUse,
		Short: configShortDescription,
		Long:  configLongDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			configPath, configPathError := config.Path()
			if configPathError != nil {
				return configPathError
			}
			settings, loadError := config.Load(configPath)
			if loadError != nil {
				return loadError
			}

			flagSet := command.Flags()
			changed := false

			if flagSet.Changed(setChunkSizeFlagName) {
				if chunkSize < 0 {
					return fmt.Errorf(errorNegativeSettingFormat, setChunkSizeFlagName)
				}
				settings.ChunkSize = chunkSize
				command.Printf(settingUpdatedLogFormat, "chunk size", chunkSize)
				changed = true
			}
			if flagSet.Changed(setLogLevelFlagName) {
				normalizedLevel := strings.ToLower(logLevel)
				if !utils.IsSupportedLogLevel(normalizedLevel) {
					return fmt.Errorf(errorInvalidLogLevelFormat, logLevel)
				}
				settings.LogLevel = normalizedLevel
				command.Printf(settingUpdatedLogFormat, "log level", normalizedLevel)
				changed = true
			}
			if flagSet.Changed(setOutputDirectoryFlagName) {
				settings.OutputDirectory = outputDirectory
				command.Printf(settingUpdatedLogFormat, "output directory", outputDirectory)
				changed = true
			}
			if flagSet.Changed(setRetriesFlagName) {
				if retries < 0 {
					return fmt.Errorf(errorNegativeSettingFormat, setRetriesFlagName)
				}
				settings.Retries = retries
				command.Printf(settingUpdatedLogFormat, "retries", retries)
				changed = true
			}
			if flagSet.Changed(setAPIKeyFlagName) {
				settings.APIKey = apiKey
				command.Print(apiKeyUpdatedMessage)
				changed = true
			}
			if flagSet.Changed(setSystemPromptFlagName) {
				settings.SystemPrompt = systemPrompt
				command.Printf(settingUpdatedLogFormat, "system prompt", systemPrompt)
				changed = true
			}
			if flagSet.Changed(setTemperatureFlagName) {
				if temperature < 0.0 || temperature > 1.0 {
					return fmt.Errorf(errorInvalidTemperatureFormat, temperature)
				}
				settings.Temperature = temperature
				command.Printf(settingUpdatedLogFormat, "temperature", temperature)
				changed = true
			}

			if !changed {
				command.Print(noSettingsChangedMessage)
				return nil
			}
			return config.Save(configPath, settings)
		},
	}

	flagSet := configCommand.Flags()
	flagSet.IntVar(&chunkSize, setChunkSizeFlagName, config.DefaultChunkSize, "set the chunk size for splitting files")
	flagSet.StringVar(&logLevel, setLogLevelFlagName, config.DefaultLogLevel, "set the log level (debug, info, warn, error)")
	flagSet.StringVar(&outputDirectory, setOutputDirectoryFlagName, config.DefaultOutputDirectory, "set the output directory")
	flagSet.IntVar(&retries, setRetriesFlagName, config.DefaultRetries, "set the maximum number of retries for API calls")
	flagSet.StringVar(&apiKey, setAPIKeyFlagName, "", "set the API key")
	flagSet.StringVar(&systemPrompt, setSystemPromptFlagName, config.DefaultSystemPrompt, "set the system prompt for the AI")
	flagSet.Float64Var(&temperature, setTemperatureFlagName, config.DefaultTemperature, "set the temperature for the AI")
	return configCommand
}
