// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/presshq/press/internal/aggregate"
	"github.com/presshq/press/internal/api"
	"github.com/presshq/press/internal/clipboard"
	"github.com/presshq/press/internal/config"
	"github.com/presshq/press/internal/console"
	"github.com/presshq/press/internal/parse"
	"github.com/presshq/press/internal/tokenizer"
	"github.com/presshq/press/internal/types"
	"github.com/presshq/press/internal/utils"
	"github.com/presshq/press/internal/walker"
	"github.com/presshq/press/internal/writer"
)

const (
	pathsFlagName           = "paths"
	outputDirectoryFlagName = "output-directory"
	promptFlagName          = "prompt"
	systemPromptFlagName    = "system-prompt"
	apiKeyFlagName          = "api-key"
	autoFlagName            = "auto"
	retriesFlagName         = "retries"
	chunkSizeFlagName       = "chunk-size"
	pipeOutputFlagName      = "pipe-output"
	logLevelFlagName        = "log-level"
	temperatureFlagName     = "temp"
	ignoreFlagName          = "ignore"
	copyFlagName            = "copy"

	// pipeOutputMissingLineCount applies when --pipe-output is given bare.
	pipeOutputMissingLineCount = "10"

	pathsFlagDescription           = "files or directories to process"
	outputDirectoryFlagDescription = "directory receiving generated files"
	promptFlagDescription          = "instruction text for the AI"
	systemPromptFlagDescription    = "system prompt for the AI"
	apiKeyFlagDescription          = "API key; persisted to local config on first use"
	autoFlagDescription            = "overwrite original files instead of writing to the output directory"
	retriesFlagDescription         = "maximum number of retries for API calls"
	chunkSizeFlagDescription       = "chunk size in lines for splitting files"
	pipeOutputFlagDescription      = "include the trailing N lines of piped stdin in the prompt"
	logLevelFlagDescription        = "log level (debug, info, warn, error)"
	temperatureFlagDescription     = "sampling temperature in [0.0, 1.0]"
	ignoreFlagDescription          = "files or directories to exclude"
	copyFlagDescription            = "copy the assistant's commentary to the clipboard"

	rootUse              = "press"
	rootShortDescription = "press sends code files to an AI and writes the reply back to disk"
	rootLongDescription  = `press aggregates text and code files from the given paths, submits them
with a prompt to the DeepSeek chat-completions API, and writes the returned
files either under the output directory or, with --auto, over the originals.`

	errorInvalidTemperatureFormat = "temperature %.2f outside [0.0, 1.0]"
	errorInvalidLogLevelFormat    = "invalid log level '%s'"
	errorNegativeRetriesFormat    = "retries %d must not be negative"
	errorMissingAPIKeyMessage     = "no API key configured; pass --api-key once to persist it"
	warningTokenizerFormat        = "token counting disabled: %v"
	warningClipboardFormat        = "clipboard copy failed: %v"

	chunkSubmitLogFormat   = "submitting chunk %d/%d (%d tokens)"
	chunkRetriedLogFormat  = "chunk %d succeeded after %d retries"
	runCompletedLogFormat  = "saved %d file(s), deleted %d, %d failure(s) in %s"
	filesCollectedFormat   = "processing %d file(s)"
	responseReceivedFormat = "received %d response(s)"
)

// runOptions carries every root-command flag value.
type runOptions struct {
	paths           []string
	outputDirectory string
	prompt          string
	systemPrompt    string
	apiKey          string
	auto            bool
	retries         int
	chunkSize       int
	pipeOutputLines int
	logLevel        string
	temperature     float64
	ignorePaths     []string
	copyToClipboard bool
}

// Execute runs the press application.
func Execute() error {
	rootCommand := createRootCommand()
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command and its subcommands.
func createRootCommand() *cobra.Command {
	var options runOptions

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			configPath, configPathError := config.Path()
			if configPathError != nil {
				return configPathError
			}
			return runPress(command, &options, configPath)
		},
	}

	flagSet := rootCommand.Flags()
	flagSet.StringSliceVar(&options.paths, pathsFlagName, nil, pathsFlagDescription)
	flagSet.StringVar(&options.outputDirectory, outputDirectoryFlagName, config.DefaultOutputDirectory, outputDirectoryFlagDescription)
	flagSet.StringVar(&options.prompt, promptFlagName, "", promptFlagDescription)
	flagSet.StringVar(&options.systemPrompt, systemPromptFlagName, config.DefaultSystemPrompt, systemPromptFlagDescription)
	flagSet.StringVar(&options.apiKey, apiKeyFlagName, "", apiKeyFlagDescription)
	flagSet.BoolVar(&options.auto, autoFlagName, false, autoFlagDescription)
	flagSet.IntVar(&options.retries, retriesFlagName, config.DefaultRetries, retriesFlagDescription)
	flagSet.IntVar(&options.chunkSize, chunkSizeFlagName, config.DefaultChunkSize, chunkSizeFlagDescription)
	flagSet.IntVar(&options.pipeOutputLines, pipeOutputFlagName, console.DefaultCaptureLines, pipeOutputFlagDescription)
	flagSet.Lookup(pipeOutputFlagName).NoOptDefVal = pipeOutputMissingLineCount
	flagSet.StringVar(&options.logLevel, logLevelFlagName, config.DefaultLogLevel, logLevelFlagDescription)
	flagSet.Float64Var(&options.temperature, temperatureFlagName, config.DefaultTemperature, temperatureFlagDescription)
	flagSet.StringSliceVar(&options.ignorePaths, ignoreFlagName, nil, ignoreFlagDescription)
	flagSet.BoolVar(&options.copyToClipboard, copyFlagName, false, copyFlagDescription)

	_ = rootCommand.MarkFlagRequired(pathsFlagName)
	_ = rootCommand.MarkFlagRequired(promptFlagName)

	rootCommand.AddCommand(
		createConfigCommand(),
		createRollbackCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// applyPersistedSettings fills every flag the user did not set from the
// persisted configuration.
func applyPersistedSettings(command *cobra.Command, options *runOptions, settings config.Settings) {
	flagSet := command.Flags()
	if !flagSet.Changed(outputDirectoryFlagName) && settings.OutputDirectory != "" {
		options.outputDirectory = settings.OutputDirectory
	}
	if !flagSet.Changed(systemPromptFlagName) && settings.SystemPrompt != "" {
		options.systemPrompt = settings.SystemPrompt
	}
	if !flagSet.Changed(retriesFlagName) {
		options.retries = settings.Retries
	}
	if !flagSet.Changed(chunkSizeFlagName) {
		options.chunkSize = settings.ChunkSize
	}
	if !flagSet.Changed(logLevelFlagName) && settings.LogLevel != "" {
		options.logLevel = settings.LogLevel
	}
	if !flagSet.Changed(temperatureFlagName) {
		options.temperature = settings.Temperature
	}
}

// resolveAPIKey picks the key from the flag or persisted settings, persisting
// a newly supplied key so later invocations may omit it.
func resolveAPIKey(options *runOptions, settings config.Settings, configPath string, logger *zap.Logger) (string, error) {
	if options.apiKey != "" {
		if options.apiKey != settings.APIKey {
			settings.APIKey = options.apiKey
			if saveError := config.Save(configPath, settings); saveError != nil {
				logger.Warn(saveError.Error())
			}
		}
		return options.apiKey, nil
	}
	if settings.APIKey != "" {
		return settings.APIKey, nil
	}
	return "", fmt.Errorf(errorMissingAPIKeyMessage)
}

// validateOptions enforces input constraints before any work starts. It runs
// after the persisted-settings merge so values from an edited configuration
// file face the same checks as flags.
func validateOptions(options *runOptions) error {
	if options.temperature < 0.0 || options.temperature > 1.0 {
		return fmt.Errorf(errorInvalidTemperatureFormat, options.temperature)
	}
	if options.retries < 0 {
		return fmt.Errorf(errorNegativeRetriesFormat, options.retries)
	}
	if !utils.IsSupportedLogLevel(strings.ToLower(options.logLevel)) {
		return fmt.Errorf(errorInvalidLogLevelFormat, options.logLevel)
	}
	return nil
}

// runPress executes the full pipeline: walk, aggregate, submit, parse, write.
func runPress(command *cobra.Command, options *runOptions, configPath string) error {
	settings, settingsError := config.Load(configPath)
	if settingsError != nil {
		return settingsError
	}
	applyPersistedSettings(command, options, settings)

	if validationError := validateOptions(options); validationError != nil {
		return validationError
	}

	logger, loggerError := utils.NewApplicationLogger(strings.ToLower(options.logLevel))
	if loggerError != nil {
		return loggerError
	}
	defer func() { _ = logger.Sync() }()

	apiKey, apiKeyError := resolveAPIKey(options, settings, configPath, logger)
	if apiKeyError != nil {
		return apiKeyError
	}

	// Capture piped console output before any logging reaches the terminal.
	capturedOutput := ""
	if command.Flags().Changed(pipeOutputFlagName) {
		capturedOutput = console.CaptureStdin(options.pipeOutputLines, logger)
	}

	startTime := time.Now()

	pathWalker := walker.New(walker.Options{
		Paths:        options.paths,
		IgnorePaths:  options.ignorePaths,
		UseGitignore: true,
	}, logger)
	walkedFiles, walkError := pathWalker.Collect()
	if walkError != nil {
		return walkError
	}

	tokenCounter, counterError := tokenizer.NewCounter("")
	if counterError != nil {
		logger.Warn(fmt.Sprintf(warningTokenizerFormat, counterError))
		tokenCounter = nil
	}

	aggregator := aggregate.New(options.chunkSize, tokenCounter, logger)
	sources := aggregator.ReadSources(walkedFiles)
	if len(sources) == 0 {
		return fmt.Errorf("none of the %d collected file(s) could be read", len(walkedFiles))
	}
	logger.Info(fmt.Sprintf(filesCollectedFormat, len(sources)))

	document := aggregator.BuildDocument(sources)
	chunks := aggregator.Chunk(document)

	prompt := options.prompt
	if wrapped := console.Wrap(capturedOutput); wrapped != "" {
		prompt += wrapped
	}

	client := api.NewClient(api.Config{
		APIKey:      apiKey,
		Temperature: options.temperature,
		MaxRetries:  options.retries,
	}, logger)

	responses, submitError := submitChunks(context.Background(), client, chunks, prompt, options.systemPrompt, logger)
	if submitError != nil {
		return submitError
	}
	logger.Info(fmt.Sprintf(responseReceivedFormat, len(responses)))

	rawResponse := parse.Concatenate(responses)
	parsedFiles := parse.NewParser(logger).Parse(rawResponse)

	outputWriter := writer.New(writer.Options{
		OutputDirectory: options.outputDirectory,
		Auto:            options.auto,
		ChunkSize:       options.chunkSize,
	}, logger)
	if saveError := outputWriter.SaveRawResponse(rawResponse); saveError != nil {
		logger.Warn(saveError.Error())
	}
	result := outputWriter.Dispatch(parsedFiles, sources)

	if options.copyToClipboard {
		copyCommentary(parsedFiles, rawResponse, logger)
	}

	logger.Info(fmt.Sprintf(runCompletedLogFormat, result.SavedFiles, result.DeletedFiles, result.Failures, time.Since(startTime).Round(time.Millisecond)))
	return nil
}

// submitChunks sends every chunk strictly sequentially. The first chunk that
// exhausts its retries aborts the whole run; nothing is written in that case.
func submitChunks(ctx context.Context, client *api.Client, chunks []types.PromptChunk, prompt, systemPrompt string, logger *zap.Logger) ([]types.AiResponse, error) {
	responses := make([]types.AiResponse, 0, len(chunks))
	for _, chunk := range chunks {
		logger.Info(fmt.Sprintf(chunkSubmitLogFormat, chunk.Index, chunk.Total, chunk.Tokens))
		response, retryState, completeError := client.Complete(ctx, chunk, prompt, systemPrompt)
		if completeError != nil {
			return nil, completeError
		}
		if retryState.AttemptCount > 0 {
			logger.Info(fmt.Sprintf(chunkRetriedLogFormat, chunk.Index, retryState.AttemptCount))
		}
		responses = append(responses, response)
	}
	return responses, nil
}

// copyCommentary places the assistant's commentary, or the raw response when
// no commentary exists, on the system clipboard.
func copyCommentary(parsedFiles []types.ParsedFile, rawResponse string, logger *zap.Logger) {
	text := rawResponse
	for _, parsedFile := range parsedFiles {
		if parsedFile.Kind == types.ParsedFileKindNote {
			text = parsedFile.Content
			break
		}
	}
	if copyError := clipboard.NewService().Copy(text); copyError != nil {
		logger.Warn(fmt.Sprintf(warningClipboardFormat, copyError))
	}
}
